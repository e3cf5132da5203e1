// Package config loads runtimed's environment configuration, failing fast
// when remote mode is selected without the values it requires.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider selects which backing runtime environments are brokered against.
type Provider string

const (
	ProviderWebcontainer Provider = "webcontainer"
	ProviderDokploy      Provider = "dokploy"
)

// Config is the fully resolved, validated process configuration.
type Config struct {
	Provider Provider

	EnableWebcontainerLegacy bool

	DokployBaseURL            string
	DokployAPIKey             string
	DokployServerID           string
	DokployCanaryServerID     string
	DokployCanaryRolloutPct   int

	SessionIdleMinutes int
	HeartbeatSeconds   int

	TokenSecret    string
	CleanupSecret  string

	Port string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// Load reads Config from the process environment and validates it,
// returning an error instead of the partially-built value on failure.
func Load() (*Config, error) {
	cfg := &Config{
		Provider:                Provider(getEnv("RUNTIME_PROVIDER", string(ProviderWebcontainer))),
		DokployBaseURL:          os.Getenv("DOKPLOY_BASE_URL"),
		DokployAPIKey:           os.Getenv("DOKPLOY_API_KEY"),
		DokployServerID:         os.Getenv("DOKPLOY_SERVER_ID"),
		DokployCanaryServerID:   os.Getenv("DOKPLOY_CANARY_SERVER_ID"),
		TokenSecret:             os.Getenv("RUNTIME_TOKEN_SECRET"),
		CleanupSecret:           os.Getenv("RUNTIME_CLEANUP_SECRET"),
		Port:                    getEnv("PORT", "8080"),
		RedisHost:               getEnv("REDIS_HOST", "localhost"),
		RedisPort:               getEnv("REDIS_PORT", "6379"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	cfg.EnableWebcontainerLegacy, err = getBoolEnv("ENABLE_WEBCONTAINER_LEGACY", cfg.Provider == ProviderWebcontainer)
	if err != nil {
		return nil, err
	}
	cfg.RedisEnabled, err = getBoolEnv("REDIS_ENABLED", false)
	if err != nil {
		return nil, err
	}
	cfg.RedisDB, err = getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.DokployCanaryRolloutPct, err = getIntEnv("DOKPLOY_CANARY_ROLLOUT_PERCENT", 0)
	if err != nil {
		return nil, err
	}
	cfg.SessionIdleMinutes, err = getIntEnv("RUNTIME_SESSION_IDLE_MIN", 15)
	if err != nil {
		return nil, err
	}
	cfg.HeartbeatSeconds, err = getIntEnv("RUNTIME_HEARTBEAT_SEC", 30)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Provider != ProviderWebcontainer && c.Provider != ProviderDokploy {
		return fmt.Errorf("RUNTIME_PROVIDER must be %q or %q, got %q", ProviderWebcontainer, ProviderDokploy, c.Provider)
	}
	if c.DokployCanaryRolloutPct < 0 || c.DokployCanaryRolloutPct > 100 {
		return fmt.Errorf("DOKPLOY_CANARY_ROLLOUT_PERCENT must be in [0,100], got %d", c.DokployCanaryRolloutPct)
	}
	if c.SessionIdleMinutes < 1 {
		return fmt.Errorf("RUNTIME_SESSION_IDLE_MIN must be >= 1, got %d", c.SessionIdleMinutes)
	}
	if c.HeartbeatSeconds < 5 {
		return fmt.Errorf("RUNTIME_HEARTBEAT_SEC must be >= 5, got %d", c.HeartbeatSeconds)
	}

	if c.Provider == ProviderDokploy {
		missing := []string{}
		if c.DokployBaseURL == "" {
			missing = append(missing, "DOKPLOY_BASE_URL")
		}
		if c.DokployAPIKey == "" {
			missing = append(missing, "DOKPLOY_API_KEY")
		}
		if c.TokenSecret == "" {
			missing = append(missing, "RUNTIME_TOKEN_SECRET")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required configuration for remote mode: %s", strings.Join(missing, ", "))
		}
		if c.DokployCanaryRolloutPct > 0 && c.DokployCanaryServerID == "" {
			return fmt.Errorf("DOKPLOY_CANARY_ROLLOUT_PERCENT > 0 requires DOKPLOY_CANARY_SERVER_ID")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func getIntEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}
