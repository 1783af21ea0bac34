package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageJSONFile = "jsonfile"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	StorageDriver     string
	DatabaseURL       string
	SQLitePath        string
	JSONStorePath     string
	RedisURL          string
	NATSURL           string
	NATSSubject       string
	NATSQueue         string
	JWTSecret         string
	CORSAllowOrigins  string
	RubricRateLimit   int
	RateLimitWindow   time.Duration
	DashboardCacheTTL time.Duration
	AIProvider        string
	AIModel           string
	AITemperature     float64
	AIMaxTokens       int
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	GradingTimeout    time.Duration
	GradingBatchSize  int
	GradingBatchDelay time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RUBRIC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Rubric Review API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("storage.driver", "")
	v.SetDefault("sqlite.path", "data/rubric.db")
	v.SetDefault("json_store.path", "data/submissions.json")
	v.SetDefault("nats.subject", "rubric.grading.requested")
	v.SetDefault("nats.queue", "rubric-graders")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("rate_limit.rubric", 10)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("grading.timeout", "3m")
	v.SetDefault("grading.batch_size", 5)
	v.SetDefault("grading.batch_delay", "2s")

	durations := map[string]time.Duration{}
	for _, key := range []string{"rate_limit.window", "dashboard.cache_ttl", "grading.timeout", "grading.batch_delay"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		StorageDriver:     strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		DatabaseURL:       v.GetString("database.url"),
		SQLitePath:        v.GetString("sqlite.path"),
		JSONStorePath:     v.GetString("json_store.path"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		NATSSubject:       v.GetString("nats.subject"),
		NATSQueue:         v.GetString("nats.queue"),
		JWTSecret:         v.GetString("jwt.secret"),
		CORSAllowOrigins:  v.GetString("cors.allow_origins"),
		RubricRateLimit:   v.GetInt("rate_limit.rubric"),
		RateLimitWindow:   durations["rate_limit.window"],
		DashboardCacheTTL: durations["dashboard.cache_ttl"],
		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		AIModel:           v.GetString("ai.model"),
		AITemperature:     v.GetFloat64("ai.temperature"),
		AIMaxTokens:       v.GetInt("ai.max_tokens"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		AnthropicAPIKey:   v.GetString("anthropic_api_key"),
		GradingTimeout:    durations["grading.timeout"],
		GradingBatchSize:  v.GetInt("grading.batch_size"),
		GradingBatchDelay: durations["grading.batch_delay"],
	}

	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StorageJSONFile
		if cfg.DatabaseURL != "" {
			cfg.StorageDriver = StoragePostgres
		}
	}

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url is required for the postgres storage driver")
		}
	case StorageSQLite, StorageJSONFile:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q (supported: postgres, sqlite, jsonfile)", cfg.StorageDriver)
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AITemperature < 0 || cfg.AITemperature > 1 {
		return Config{}, fmt.Errorf("ai temperature must be within [0, 1]")
	}
	if cfg.AIMaxTokens <= 0 {
		cfg.AIMaxTokens = 2048
	}
	if cfg.GradingBatchSize <= 0 {
		cfg.GradingBatchSize = 5
	}
	if cfg.RubricRateLimit <= 0 {
		cfg.RubricRateLimit = 10
	}

	return cfg, nil
}
