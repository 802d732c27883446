package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prism-dex/router-engine/router/config"
	"github.com/prism-dex/router-engine/router/engine"
	"github.com/prism-dex/router-engine/router/pricecache"
	"github.com/prism-dex/router-engine/router/rpc"
	"github.com/prism-dex/router-engine/telemetry"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	// Initialize zerolog with console writer
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the RPC package
	rpc.SetLogger(log)
}

func main() {
	// Parse command line flags
	configRpc := flag.String("config-rpc", "./rpc-config.toml", "config file for the rpc server, empty loads from env")
	flag.Parse()

	log.Info().
		Str("rpc_config", *configRpc).
		Msg("Starting Prism Router")

	// Load RPC server configuration, falling back to env-only mode when no
	// file is given
	var rpcConfigPath *string
	if *configRpc != "" {
		rpcConfigPath = configRpc
	}
	rpcConfig, err := config.LoadRPCRouterConfig(rpcConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load RPC config")
	}

	// Wire the engine metrics into the default registry served at /server/metrics
	cache := pricecache.New(rpcConfig.CacheTTL())
	metrics := engine.NewMetrics(prometheus.DefaultRegisterer)
	engine.RegisterCacheMetrics(prometheus.DefaultRegisterer, cache)

	// Load the generated market config and build the routing engine
	marketLoader := config.NewMarketConfigLoader()
	router, registry, chains, err := marketLoader.InitializeRouter(
		rpcConfig.MarketConfigPath, rpcConfig.EngineParams(), cache, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize router")
	}

	log.Info().
		Int("count", len(chains)).
		Uints64("chains", chains).
		Msg("Loaded chains")

	// Create the RPC server configuration
	serverConfig := buildServerConfig(rpcConfig)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the RPC server
	server, err := rpc.NewServer(ctx, serverConfig, router, registry, chains)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC server")
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	// Close venue adapters
	registry.CloseAdapters()
	log.Info().Msg("Closed venue adapters")
}

// buildServerConfig converts the loaded RPCRouterConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.RPCRouterConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        cfg.Host + ":" + itoa(cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.UsePrometheus, // Enable metrics endpoint if prometheus is enabled
	}

	// Set rate limiting if configured
	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	// Set OpenTelemetry configuration if any telemetry is enabled
	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs || cfg.UsePrometheus {
		serverConfig.OTel = &telemetry.Config{
			ServiceName:    defaultString(cfg.ServiceName, "prism-router"),
			ServiceVersion: defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:    defaultString(cfg.Environment, "development"),
			Tracing:        cfg.EnableTracing,
			OTLPTraces:     cfg.UseOTLPTraces,
			OTLPTracesURL:  cfg.OTLPTracesURL,
			Metrics:        cfg.EnableMetrics,
			Prometheus:     cfg.UsePrometheus,
			OTLPMetrics:    cfg.UseOTLPMetrics,
			OTLPMetricsURL: cfg.OTLPMetricsURL,
			Logs:           cfg.EnableLogs,
			OTLPLogs:       cfg.UseOTLPLogs,
			OTLPLogsURL:    cfg.OTLPLogsURL,
			Insecure:       cfg.InsecureOTLP,
			Development:    cfg.DevelopmentMode,
		}
	}

	return serverConfig
}

// itoa converts int to string without importing strconv
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	negative := i < 0
	if negative {
		i = -i
	}
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
