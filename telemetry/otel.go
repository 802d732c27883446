// Package telemetry bootstraps the OpenTelemetry pipeline shared by the
// router and executor services: tracing, metrics (prometheus pull or OTLP
// push) and optional log export.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Config selects which signals are exported and where. Zero-value signal
// toggles mean "off"; app logs stay on zerolog either way.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Traces
	Tracing       bool
	OTLPTraces    bool
	OTLPTracesURL string

	// Metrics. Prometheus exposes a pull endpoint through
	// PrometheusExporter; OTLPMetrics pushes on a periodic reader.
	Metrics        bool
	Prometheus     bool
	OTLPMetrics    bool
	OTLPMetricsURL string

	// Logs (OTLP log export, e.g. Loki).
	Logs        bool
	OTLPLogs    bool
	OTLPLogsURL string

	// Insecure allows plaintext OTLP connections. Local development only;
	// production endpoints should present TLS.
	Insecure bool

	// mTLS material for the OTLP client connection. This is the client
	// side toward the collector, unrelated to any server certificate.
	ClientCertFile string
	ClientKeyFile  string
	CACertFile     string

	// Development swaps every exporter for stdout.
	Development bool

	// PrometheusExporter is populated during Setup when Prometheus is
	// enabled; the RPC layer mounts it on /metrics.
	PrometheusExporter *prometheus.Exporter
}

// DefaultConfig enables tracing and prometheus metrics for the named
// service.
func DefaultConfig(service string) *Config {
	return &Config{
		ServiceName:    service,
		ServiceVersion: "1.0.0",
		Environment:    "production",
		Tracing:        true,
		OTLPTraces:     true,
		OTLPTracesURL:  "http://localhost:4318/v1/traces",
		Metrics:        true,
		Prometheus:     true,
		OTLPMetricsURL: "http://localhost:4318/v1/metrics",
		OTLPLogsURL:    "http://localhost:4318/v1/logs",
	}
}

// Setup wires the configured providers into the otel globals. The returned
// shutdown function flushes and closes every provider that was started; call
// it on the way out even when Setup errors.
func Setup(ctx context.Context, config *Config) (func(context.Context) error, error) {
	if config == nil {
		config = DefaultConfig("prism-dex")
	}

	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	res, err := newResource(config)
	if err != nil {
		return shutdown, fmt.Errorf("building otel resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.Tracing {
		tracerProvider, err := newTracerProvider(ctx, res, config)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
		otel.SetTracerProvider(tracerProvider)
	}

	if config.Metrics {
		meterProvider, err := newMeterProvider(ctx, res, config)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otel.SetMeterProvider(meterProvider)
	}

	if config.Logs {
		loggerProvider, err := newLoggerProvider(ctx, res, config)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
		global.SetLoggerProvider(loggerProvider)
	}

	return shutdown, nil
}

func newResource(config *Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironmentName(config.Environment),
		),
	)
}

// clientTLS builds the TLS configuration for OTLP client connections, nil
// when running insecure.
func clientTLS(config *Config) (*tls.Config, error) {
	if config.Insecure {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if config.CACertFile != "" {
		caCert, err := os.ReadFile(config.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("CA certificate %s contains no usable PEM", config.CACertFile)
		}
		tlsConfig.RootCAs = pool
	}

	if config.ClientCertFile != "" && config.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(config.ClientCertFile, config.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, config *Config) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch {
	case config.Development:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
	case config.OTLPTraces:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPTracesURL)}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else {
			tlsConfig, err := clientTLS(config)
			if err != nil {
				return nil, fmt.Errorf("trace exporter TLS: %w", err)
			}
			if tlsConfig != nil {
				opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig))
			}
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
		}
	default:
		return trace.NewTracerProvider(trace.WithResource(res)), nil
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, config *Config) (*metric.MeterProvider, error) {
	var readers []metric.Reader

	if config.Prometheus {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		config.PrometheusExporter = exporter
		readers = append(readers, exporter)
	}

	if config.OTLPMetrics {
		if config.Development {
			exporter, err := stdoutmetric.New()
			if err != nil {
				return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
			}
			readers = append(readers, metric.NewPeriodicReader(exporter,
				metric.WithInterval(10*time.Second)))
		} else {
			opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.OTLPMetricsURL)}
			if config.Insecure {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			} else {
				tlsConfig, err := clientTLS(config)
				if err != nil {
					return nil, fmt.Errorf("metric exporter TLS: %w", err)
				}
				if tlsConfig != nil {
					opts = append(opts, otlpmetrichttp.WithTLSClientConfig(tlsConfig))
				}
			}
			exporter, err := otlpmetrichttp.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
			}
			readers = append(readers, metric.NewPeriodicReader(exporter,
				metric.WithInterval(60*time.Second)))
		}
	}

	if len(readers) == 0 {
		return metric.NewMeterProvider(metric.WithResource(res)), nil
	}

	opts := []metric.Option{metric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, metric.WithReader(reader))
	}
	return metric.NewMeterProvider(opts...), nil
}

func newLoggerProvider(ctx context.Context, res *resource.Resource, config *Config) (*log.LoggerProvider, error) {
	var exporter log.Exporter
	var err error

	switch {
	case config.Development:
		exporter, err = stdoutlog.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout log exporter: %w", err)
		}
	case config.OTLPLogs:
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(config.OTLPLogsURL)}
		if config.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		} else {
			tlsConfig, err := clientTLS(config)
			if err != nil {
				return nil, fmt.Errorf("log exporter TLS: %w", err)
			}
			if tlsConfig != nil {
				opts = append(opts, otlploghttp.WithTLSClientConfig(tlsConfig))
			}
		}
		exporter, err = otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP log exporter: %w", err)
		}
	default:
		return log.NewLoggerProvider(log.WithResource(res)), nil
	}

	return log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	), nil
}
