package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/prism-dex/router-engine/executor/relay"
)

// LoadRPCExecutorConfig loads the RPC executor config from the given path
func LoadRPCExecutorConfig(configPath *string) (*RPCExecutorConfig, error) {
	v := viper.New()

	if configPath == nil {
		// if no file expect envs
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	} else {
		config, err := loadFile(v, *configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load file config: %w", err)
		}
		return config, nil
	}
}

func loadEnv(v *viper.Viper) (*RPCExecutorConfig, error) {
	// godot might fail if .env file is missing but
	// env can be applied through docker, systmed or other means, so skip error
	_ = godotenv.Load()
	v.SetEnvPrefix("EXECUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config RPCExecutorConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded (env-only mode). Bridge tables have no env
// form; env-only deployments run without swap support.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
		"relay_urls", "relay_timeout_ms", "relay_max_retries", "relay_retry_delay_ms",
		"bundle_retention_minutes",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*RPCExecutorConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config RPCExecutorConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}

	return &config, nil
}

func verifyConfig(config *RPCExecutorConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	if len(config.RelayURLs) == 0 {
		return fmt.Errorf("relay_urls is required")
	}

	if config.RelayTimeoutMs < 0 || config.RelayMaxRetries < 0 ||
		config.RelayRetryDelayMs < 0 || config.BundleRetentionMinutes < 0 {
		return fmt.Errorf("relay and retention knobs must not be negative")
	}

	for i, b := range config.Bridges {
		if b.SourceChain == "" || b.DestChain == "" || b.Address == "" {
			return fmt.Errorf("bridge %d needs source_chain, dest_chain and address", i)
		}
	}

	return nil
}

// RelayFailover maps the config knobs onto a relay failover config, keeping
// the client defaults for anything unset.
func (c *RPCExecutorConfig) RelayFailover() relay.FailoverConfig {
	cfg := relay.DefaultFailoverConfig()
	if c.RelayTimeoutMs > 0 {
		cfg.Timeout = time.Duration(c.RelayTimeoutMs) * time.Millisecond
	}
	if c.RelayMaxRetries > 0 {
		cfg.MaxRetries = c.RelayMaxRetries
	}
	if c.RelayRetryDelayMs > 0 {
		cfg.RetryDelay = time.Duration(c.RelayRetryDelayMs) * time.Millisecond
	}
	return cfg
}

// BundleRetention returns how long bundles stay in the store.
func (c *RPCExecutorConfig) BundleRetention() time.Duration {
	if c.BundleRetentionMinutes > 0 {
		return time.Duration(c.BundleRetentionMinutes) * time.Minute
	}
	return time.Hour
}
