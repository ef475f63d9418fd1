package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	// EngineBaseURL is the prediction engine origin. Empty means the
	// gateway proxies a same-origin engine and must run in mock mode.
	EngineBaseURL string

	// MockMode selects the local generator over the live engine.
	MockMode bool

	// UserID is the identity forwarded to the engine on prediction
	// requests (per-page fixed constant in the original site).
	UserID string

	DefaultModel string

	// MockFixedNumbers pins numbers into every mock-generated ticket,
	// standing in for the engine's per-round fixed pair.
	MockFixedNumbers []int

	DBPath     string
	ServerPort string
	LogLevel   string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		EngineBaseURL:    getEnv("ENGINE_BASE_URL", ""),
		MockMode:         getBoolEnv("MOCK_MODE", false),
		UserID:           getEnv("ENGINE_USER_ID", "guest"),
		DefaultModel:     getEnv("DEFAULT_MODEL", "logic"),
		MockFixedNumbers: getIntListEnv("MOCK_FIXED_NUMBERS", logger),
		DBPath:           getEnv("DB_PATH", "loto.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if cfg.EngineBaseURL == "" && !cfg.MockMode {
		logger.Warn().Msg("ENGINE_BASE_URL is empty, forcing mock mode")
		cfg.MockMode = true
	}

	logger.Info().
		Str("engine_base_url", cfg.EngineBaseURL).
		Bool("mock_mode", cfg.MockMode).
		Str("default_model", cfg.DefaultModel).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntListEnv(key string, logger zerolog.Logger) []int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			logger.Warn().Str("key", key).Str("value", v).Msg("ignoring malformed number list")
			return nil
		}
		out = append(out, n)
	}
	return out
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
