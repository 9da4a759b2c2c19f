package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "parley.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PARLEY_PORT")
	setString(&cfg.Server.CORSOrigin, "PARLEY_CORS_ORIGIN")
	setString(&cfg.Storage.Driver, "PARLEY_STORAGE_DRIVER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PARLEY_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PARLEY_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PARLEY_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PARLEY_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "PARLEY_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "PARLEY_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PARLEY_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PARLEY_LOG_ASYNC")
	setString(&cfg.OTLP.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setInt(&cfg.Breaker.MaxFailures, "PARLEY_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PARLEY_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.L1MaxSizeMB, "PARLEY_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1Expire, "PARLEY_CACHE_L1_EXPIRE")
	setString(&cfg.Cache.L2Bucket, "PARLEY_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "PARLEY_CACHE_L2_TTL")
	setDuration(&cfg.Tools.Timeout, "PARLEY_TOOL_TIMEOUT")
	setInt(&cfg.Tools.MaxParallel, "PARLEY_TOOL_MAX_PARALLEL")
	setDuration(&cfg.Tools.RetryBackoff, "PARLEY_TOOL_RETRY_BACKOFF")
	setDuration(&cfg.Tools.CacheTTL, "PARLEY_TOOL_CACHE_TTL")
	setBool(&cfg.Orchestrator.RequireCorroboration, "PARLEY_ORCH_REQUIRE_CORROBORATION")
	setDuration(&cfg.Orchestrator.TurnDeadline, "PARLEY_ORCH_TURN_DEADLINE")
	setInt(&cfg.Orchestrator.ConflictRetries, "PARLEY_ORCH_CONFLICT_RETRIES")
	setString(&cfg.Auth.OperatorKeyHash, "PARLEY_OPERATOR_KEY_HASH")
	setBool(&cfg.MCP.Enabled, "PARLEY_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "PARLEY_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "PARLEY_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", cfg.Storage.Driver)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Tools.MaxParallel < 1 {
		return errors.New("tools.max_parallel must be >= 1")
	}
	if cfg.Tools.Timeout <= 0 {
		return errors.New("tools.timeout must be positive")
	}
	if cfg.Orchestrator.TurnDeadline <= 0 {
		return errors.New("orchestrator.turn_deadline must be positive")
	}
	if cfg.Orchestrator.ConflictRetries < 1 {
		return errors.New("orchestrator.conflict_retries must be >= 1")
	}
	for stage, v := range cfg.Orchestrator.Thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("orchestrator.thresholds[%s] must be in [0, 1], got %v", stage, v)
		}
	}
	for stage, v := range cfg.Orchestrator.Corroboration {
		if v < 0 || v > 1 {
			return fmt.Errorf("orchestrator.corroboration[%s] must be in [0, 1], got %v", stage, v)
		}
	}
	for i, in := range cfg.Intents {
		if in.Name == "" {
			return fmt.Errorf("intents[%d].name is required", i)
		}
		if len(in.Keywords) == 0 {
			return fmt.Errorf("intents[%d] (%s) needs at least one keyword", i, in.Name)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
