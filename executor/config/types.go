package config

// RPCExecutorConfig is read through viper, which matches mapstructure tags;
// the toml tags keep the file format documented in one place.
type RPCExecutorConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`

	// MEV relays, primary first. Failover knobs default to the relay
	// client's values when zero.
	RelayURLs         []string `toml:"relay_urls" mapstructure:"relay_urls"`
	RelayTimeoutMs    int      `toml:"relay_timeout_ms" mapstructure:"relay_timeout_ms"`
	RelayMaxRetries   int      `toml:"relay_max_retries" mapstructure:"relay_max_retries"`
	RelayRetryDelayMs int      `toml:"relay_retry_delay_ms" mapstructure:"relay_retry_delay_ms"`

	// How long submitted bundles stay queryable, zero falls back to an
	// hour
	BundleRetentionMinutes int `toml:"bundle_retention_minutes" mapstructure:"bundle_retention_minutes"`

	// HTLC bridge contracts. Only loadable from a config file; with no
	// entries the swap endpoints refuse every pair.
	Bridges []BridgeConfig `toml:"bridge" mapstructure:"bridge"`
}

// BridgeConfig declares the lock contract for one directed chain pair.
//
//	[[bridge]]
//	source_chain = "1"
//	dest_chain = "42161"
//	address = "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"
type BridgeConfig struct {
	SourceChain string `toml:"source_chain" mapstructure:"source_chain"`
	DestChain   string `toml:"dest_chain" mapstructure:"dest_chain"`
	Address     string `toml:"address" mapstructure:"address"`
}
