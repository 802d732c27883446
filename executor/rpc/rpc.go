// Package rpc serves the executor HTTP API: bundle submission and
// cross-chain swap coordination.
package rpc

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/prism-dex/router-engine/executor/htlc"
	"github.com/prism-dex/router-engine/executor/mev"
	"github.com/prism-dex/router-engine/executor/relay"
	"github.com/prism-dex/router-engine/telemetry"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// ServerConfig holds configuration for the RPC server
type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         *int
	MaxConcurrentRequests *int
	OTel                  *telemetry.Config
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() *ServerConfig {
	rateLimit := 0
	maxConcurrentRequests := 200
	return &ServerConfig{
		Address:               "localhost:8081",
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:8081"},
		EnableMetrics:         true,
		RatePerMinute:         &rateLimit,
		MaxConcurrentRequests: &maxConcurrentRequests,
		OTel:                  telemetry.DefaultConfig("prism-executor"),
	}
}

// Server wraps the HTTP server and provides lifecycle management
type Server struct {
	config       *ServerConfig
	httpServer   *http.Server
	mux          *chi.Mux
	otelShutdown func(context.Context) error
}

// NewServer creates the executor API server.
func NewServer(ctx context.Context, config *ServerConfig, obfuscator *mev.Obfuscator, store *mev.Store, relayClient *relay.Client, coordinator *htlc.Coordinator) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}

	// Initialize OpenTelemetry if configured
	var otelShutdown func(context.Context) error
	if config.OTel != nil && (config.OTel.Tracing || config.OTel.Metrics || config.OTel.Logs) {
		shutdown, err := telemetry.Setup(ctx, config.OTel)
		if err != nil {
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
			// Don't fail the server, just continue without OTel
		} else {
			otelShutdown = shutdown
		}
	}

	mux := chi.NewMux()

	// zerolog replaces chi's default logger
	mux.Use(zerologMiddleware)
	mux.Use(zerologRecoverer)

	// Standard middleware
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Compress(5))
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(realIPMiddleware)

	// Rate limiting
	if config.RatePerMinute != nil && *config.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(*config.RatePerMinute, 1*time.Minute))
	}
	if config.MaxConcurrentRequests != nil && *config.MaxConcurrentRequests > 0 {
		mux.Use(middleware.Throttle(*config.MaxConcurrentRequests))
	}

	if config.EnableMetrics || (config.OTel != nil && config.OTel.Prometheus) {
		mux.Handle("/server/metrics", promhttp.Handler())
		Logger.Info().Msg("Metrics endpoint enabled: /server/metrics")
	}

	server := NewExecutorServer(obfuscator, store, relayClient, coordinator)

	mux.Route("/v1", func(r chi.Router) {
		r.With(noCacheMiddleware).Post("/bundle", server.SubmitBundle)
		r.Get("/bundle/{id}", server.BundleStatus)
		r.Post("/swaps", server.InitiateSwap)
		r.Get("/swaps/{id}", server.SwapStatus)
		r.Post("/swaps/{id}/claim", server.ClaimSwap)
		r.Post("/swaps/{id}/refund", server.RefundSwap)
	})
	mux.Get("/healthcheck", server.Healthcheck)

	// Readiness probe
	mux.HandleFunc("/server/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	corsHandler := newCORSHandler(config.AllowedOrigins, mux)

	// h2c keeps HTTP/2 available without TLS termination here
	httpServer := &http.Server{
		Addr:              config.Address,
		Handler:           h2c.NewHandler(corsHandler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		config:       config,
		httpServer:   httpServer,
		mux:          mux,
		otelShutdown: otelShutdown,
	}, nil
}

// Start begins serving requests without TLS
func (s *Server) Start() error {
	s.logServerInfo("http")
	return s.httpServer.ListenAndServe()
}

// StartTLS begins serving requests with TLS
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logServerInfo("https")
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) logServerInfo(protocol string) {
	Logger.Info().
		Str("address", s.config.Address).
		Str("protocol", protocol).
		Msg("Prism executor API starting")

	Logger.Info().Msg("Available endpoints:")
	Logger.Info().Msg("\tSubmit bundle: POST /v1/bundle")
	Logger.Info().Msg("\tBundle status: GET /v1/bundle/{id}")
	Logger.Info().Msg("\tInitiate swap: POST /v1/swaps")
	Logger.Info().Msg("\tSwap status: GET /v1/swaps/{id}")
	Logger.Info().Msg("\tClaim: POST /v1/swaps/{id}/claim")
	Logger.Info().Msg("\tRefund: POST /v1/swaps/{id}/refund")
	Logger.Info().Msg("\tHealth: GET /healthcheck")

	if s.config.EnableMetrics || (s.config.OTel != nil && s.config.OTel.Prometheus) {
		Logger.Info().Msg("\tMetrics: GET /server/metrics")
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down RPC server...")

	// HTTP first, then OTel so pending telemetry still flushes
	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			Logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			return err
		}
	}

	Logger.Info().Msg("Server shutdown complete")
	return nil
}
