package main

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type config struct {
	port          string
	apiKeys       string
	dbURL         string
	signingSecret string
	signingIssuer string
	logLevel      slog.Level
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return config{}, errors.Wrap(err, "load .env")
	}
	cfg := config{
		port:          os.Getenv("PORT"),
		apiKeys:       os.Getenv("API_KEYS"),
		dbURL:         os.Getenv("DB_URL"),
		signingSecret: os.Getenv("SIGNING_SECRET"),
		signingIssuer: os.Getenv("SIGNING_ISSUER"),
	}
	if cfg.port == "" {
		cfg.port = "8080"
	}
	cfg.logLevel = slog.LevelInfo
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if err := cfg.logLevel.UnmarshalText([]byte(lvl)); err != nil {
			return config{}, errors.Wrap(err, "LOG_LEVEL")
		}
	}
	if cfg.apiKeys == "" && cfg.dbURL == "" && cfg.signingSecret == "" {
		return config{}, errors.New("one of API_KEYS, DB_URL or SIGNING_SECRET is required")
	}
	return cfg, nil
}
