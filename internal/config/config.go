package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port              int
	DatabaseURL       string
	NatsURL           string
	NatsSubjectPrefix string
	LogLevel          string
	LogFormat         string
	AllowedOrigins    []string
	ResultsPath       string
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("[config.Load] no .env file loaded")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		NatsURL:           os.Getenv("NATS_URL"),
		NatsSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "hotseat.sessions"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "console")),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "*")),
		ResultsPath:       getEnv("RESULTS_PATH", "/results/"),
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	switch cfg.LogFormat {
	case "console", "json":
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q: want console or json", cfg.LogFormat)
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
