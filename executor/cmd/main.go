package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prism-dex/router-engine/executor/config"
	"github.com/prism-dex/router-engine/executor/htlc"
	"github.com/prism-dex/router-engine/executor/mev"
	"github.com/prism-dex/router-engine/executor/relay"
	"github.com/prism-dex/router-engine/executor/rpc"
	"github.com/prism-dex/router-engine/telemetry"
	"github.com/rs/zerolog"
)

// Bundle store sweep cadence; retention itself comes from the config.
const bundleSweepInterval = 5 * time.Minute

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
	configRpc := flag.String("config-rpc", "./executor-config.toml", "config file for the rpc server, empty loads from env")
	flag.Parse()

	log.Info().
		Str("rpc_config", *configRpc).
		Msg("Starting Prism Executor")

	// Load RPC server configuration, falling back to env-only mode when no
	// file is given
	var rpcConfigPath *string
	if *configRpc != "" {
		rpcConfigPath = configRpc
	}
	rpcConfig, err := config.LoadRPCExecutorConfig(rpcConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load RPC config")
	}

	// Register HTLC bridges from the config
	bridges := htlc.NewBridges()
	for _, b := range rpcConfig.Bridges {
		if err := bridges.Register(b.SourceChain, b.DestChain, b.Address); err != nil {
			log.Fatal().Err(err).
				Str("source", b.SourceChain).
				Str("dest", b.DestChain).
				Msg("Failed to register bridge")
		}
	}
	log.Info().Int("pairs", bridges.Pairs()).Msg("Registered bridges")

	coordinator := htlc.NewCoordinator(bridges)
	obfuscator := mev.New()

	// Wire the bundle store census into the default registry served at /server/metrics
	store := mev.NewStore()
	mev.RegisterStoreMetrics(prometheus.DefaultRegisterer, store)

	relayClient := relay.NewClientWithFailover(
		rpcConfig.RelayURLs[0], rpcConfig.RelayURLs[1:], rpcConfig.RelayFailover())

	// Create the RPC server configuration
	serverConfig := buildServerConfig(rpcConfig)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the RPC server
	server, err := rpc.NewServer(ctx, serverConfig, obfuscator, store, relayClient, coordinator)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC server")
	}

	// Sweep aged-out bundles in the background
	go func() {
		ticker := time.NewTicker(bundleSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := store.CleanupExpired(rpcConfig.BundleRetention()); removed > 0 {
					log.Info().Int("removed", removed).Msg("Swept aged-out bundles")
				}
			}
		}
	}()

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

	// Stop the relay health checker
	relayClient.Close()
	log.Info().Msg("Closed relay client")
}

// buildServerConfig converts the loaded RPCExecutorConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.RPCExecutorConfig) *rpc.ServerConfig {
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
			ServiceName:    defaultString(cfg.ServiceName, "prism-executor"),
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
