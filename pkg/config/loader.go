package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, LINGYUN_CONFIG env, ./lingyun.yaml)
//  3. .env file in the working directory (never overrides real env vars)
//  4. LINGYUN_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// godotenv only fills variables the environment does not already
	// define, so real env vars keep priority over .env entries.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery
// order: explicit argument, LINGYUN_CONFIG, ./lingyun.yaml. Returns
// empty string if none exists.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("LINGYUN_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("lingyun.yaml"); err == nil {
		return "lingyun.yaml"
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps LINGYUN_* environment variables to config
// fields.
func applyEnvOverrides(cfg *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setFloat := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			} else if secs, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = time.Duration(secs * float64(time.Second))
			}
		}
	}

	setString("LINGYUN_ACCESS_KEY", &cfg.Credentials.AccessKey)
	setString("LINGYUN_SECRET_KEY", &cfg.Credentials.SecretKey)
	setString("LINGYUN_API_KEY", &cfg.Credentials.APIKey)
	setString("LINGYUN_API_SECRET", &cfg.Credentials.APISecret)
	setString("LINGYUN_TENANT_ID", &cfg.Credentials.TenantID)

	setString("LINGYUN_BASE_URL", &cfg.Endpoint.BaseURL)
	setString("LINGYUN_IDENTITY_URL", &cfg.Endpoint.IdentityURL)
	setDuration("LINGYUN_TIMEOUT", &cfg.Endpoint.Timeout)

	setInt("LINGYUN_RETRY_COUNT", &cfg.Retry.Count)
	setDuration("LINGYUN_RETRY_TIMEOUT", &cfg.Retry.Timeout)
	setFloat("LINGYUN_BACKOFF_FACTOR", &cfg.Retry.BackoffFactor)
	setDuration("LINGYUN_MAX_WAIT_INTERVAL", &cfg.Retry.MaxWait)

	setFloat("LINGYUN_RPS_LIMIT", &cfg.RateLimit.RequestsPerSecond)
	setFloat("LINGYUN_RPM_LIMIT", &cfg.RateLimit.RequestsPerMinute)
	setFloat("LINGYUN_TPM_LIMIT", &cfg.RateLimit.TokensPerMinute)

	setString("LINGYUN_REDIS_ADDR", &cfg.RateLimit.Redis.Addr)
	setString("LINGYUN_REDIS_PASSWORD", &cfg.RateLimit.Redis.Password)
	setInt("LINGYUN_REDIS_DB", &cfg.RateLimit.Redis.DB)
	setString("LINGYUN_REDIS_KEY", &cfg.RateLimit.Redis.Key)
	setString("LINGYUN_POSTGRES_DSN", &cfg.RateLimit.Postgres.DSN)
}

// resolveFileReferences reads _file fields and populates the
// corresponding value fields when those are still empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.Credentials.SecretKeyFile != "" && cfg.Credentials.SecretKey == "" {
		val, err := readSecretFile(cfg.Credentials.SecretKeyFile)
		if err != nil {
			return fmt.Errorf("credentials.secret_key_file: %w", err)
		}
		cfg.Credentials.SecretKey = val
	}
	if cfg.Credentials.APISecretFile != "" && cfg.Credentials.APISecret == "" {
		val, err := readSecretFile(cfg.Credentials.APISecretFile)
		if err != nil {
			return fmt.Errorf("credentials.api_secret_file: %w", err)
		}
		cfg.Credentials.APISecret = val
	}
	if cfg.RateLimit.Postgres.DSNFile != "" && cfg.RateLimit.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.RateLimit.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("rate_limit.postgres.dsn_file: %w", err)
		}
		cfg.RateLimit.Postgres.DSN = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
