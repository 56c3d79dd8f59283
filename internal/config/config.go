package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	defaultPollInterval   = 5 * time.Minute
	defaultRequestTimeout = 30 * time.Second
	defaultAlertRetention = 100
	defaultLifeThreshold  = 10
	defaultListenAddr     = ":8080"
)

// Config holds the runtime configuration for the monitor. Values come from
// the environment, optionally seeded from a .env file.
type Config struct {
	IDRACHost     string
	IDRACUsername string
	IDRACPassword string
	// InsecureSkipVerify disables TLS certificate verification toward the
	// management controller. iDRAC endpoints ship with self-signed
	// certificates, so this defaults to true; set
	// IDRAC_INSECURE_SKIP_VERIFY=false when the controller carries a
	// trusted certificate.
	InsecureSkipVerify bool

	ServerName string

	PollInterval   time.Duration
	RequestTimeout time.Duration

	AlertRetention int
	// PredictiveLifeThreshold is the predicted-media-life-left percentage at
	// or below which a drive raises a predictive-failure alert.
	PredictiveLifeThreshold int

	ListenAddr string
	LogLevel   string
	LogFormat  string

	// EnvFile is the .env path that seeded this config, if any. The watcher
	// uses it for hot reload.
	EnvFile string
}

// Load reads configuration from the environment. If a .env file exists at
// the given path (or ./.env when empty), it is loaded first without
// overriding variables already present in the environment.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("path", envFile).Msg("Failed to load env file")
		}
	} else {
		envFile = ""
	}

	cfg := &Config{
		IDRACHost:               os.Getenv("IDRAC_HOST"),
		IDRACUsername:           getEnv("IDRAC_USERNAME", "root"),
		IDRACPassword:           os.Getenv("IDRAC_PASSWORD"),
		InsecureSkipVerify:      getEnvBool("IDRAC_INSECURE_SKIP_VERIFY", true),
		ServerName:              getEnv("SERVER_NAME", "Dell PowerEdge Server"),
		PollInterval:            getEnvDuration("POLL_INTERVAL", defaultPollInterval),
		RequestTimeout:          getEnvDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
		AlertRetention:          getEnvInt("ALERT_RETENTION", defaultAlertRetention),
		PredictiveLifeThreshold: getEnvInt("PREDICTIVE_LIFE_THRESHOLD", defaultLifeThreshold),
		ListenAddr:              getEnv("LISTEN_ADDR", defaultListenAddr),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "auto"),
		EnvFile:                 envFile,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and clamps nonsense values to defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.IDRACHost) == "" {
		return fmt.Errorf("IDRAC_HOST is required")
	}
	if strings.TrimSpace(c.IDRACPassword) == "" {
		return fmt.Errorf("IDRAC_PASSWORD is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.AlertRetention <= 0 {
		c.AlertRetention = defaultAlertRetention
	}
	if c.PredictiveLifeThreshold < 0 || c.PredictiveLifeThreshold > 100 {
		c.PredictiveLifeThreshold = defaultLifeThreshold
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring unparseable integer env var")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	case "":
		return defaultValue
	default:
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring unparseable boolean env var")
		return defaultValue
	}
}

// getEnvDuration accepts Go duration syntax ("5m") or a bare integer number
// of seconds, which is what the legacy deployment scripts export.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	log.Warn().Str("key", key).Str("value", value).Msg("Ignoring unparseable duration env var")
	return defaultValue
}
