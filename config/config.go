package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadEnv loads environment variables from local .env files when present.
func LoadEnv(logger *logrus.Logger) {
	files := []string{".env", ".env.dev"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
	} else {
		logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration gets a duration environment variable with a default value
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetLogLevel gets the log level from environment
func GetLogLevel() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Config carries everything the process needs to wire itself together.
type Config struct {
	ListenAddr string

	// Chain access. Leaving RPCURL empty runs the service against the
	// in-memory ownership fake, which is only useful for local development.
	RPCURL          string
	ContractAddress string

	// Optional Redis backing for revocation state and events. Empty means
	// single-instance in-memory mode.
	RedisURL string

	// Generation backend, OpenAI-compatible.
	GeneratorURL   string
	GeneratorKey   string
	GeneratorModel string

	// Secret material. TraitSalt keys trait derivation; MasterSecret keys
	// metadata field decryption.
	TraitSalt    string
	MasterSecret string

	ChallengeTTL      time.Duration
	CredentialTTL     time.Duration
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
	OwnershipCacheTTL time.Duration
	OracleTimeout     time.Duration
	GenerateTimeout   time.Duration
	SwitchWindow      time.Duration
	MessageWindow     int
	SwitchLimit       int
}

// Load reads the process configuration from the environment.
func Load() Config {
	return Config{
		ListenAddr: GetEnv("LISTEN_ADDR", ":9000"),

		RPCURL:          GetEnv("RPC_URL", ""),
		ContractAddress: GetEnv("CONTRACT_ADDRESS", ""),

		RedisURL: GetEnv("REDIS_URL", ""),

		GeneratorURL:   GetEnv("GENERATOR_URL", "http://localhost:11434"),
		GeneratorKey:   GetEnv("GENERATOR_API_KEY", ""),
		GeneratorModel: GetEnv("GENERATOR_MODEL", "gpt-4o-mini"),

		TraitSalt:    GetEnv("TRAIT_SALT", ""),
		MasterSecret: GetEnv("MASTER_SECRET", ""),

		ChallengeTTL:      GetEnvDuration("CHALLENGE_TTL", 5*time.Minute),
		CredentialTTL:     GetEnvDuration("CREDENTIAL_TTL", 30*time.Minute),
		IdleTimeout:       GetEnvDuration("IDLE_TIMEOUT", time.Hour),
		SweepInterval:     GetEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		OwnershipCacheTTL: GetEnvDuration("OWNERSHIP_CACHE_TTL", time.Minute),
		OracleTimeout:     GetEnvDuration("ORACLE_TIMEOUT", 8*time.Second),
		GenerateTimeout:   GetEnvDuration("GENERATE_TIMEOUT", 30*time.Second),
		SwitchWindow:      GetEnvDuration("SWITCH_WINDOW", time.Hour),
		MessageWindow:     GetEnvInt("MESSAGE_WINDOW", 30),
		SwitchLimit:       GetEnvInt("SWITCH_LIMIT", 10),
	}
}
