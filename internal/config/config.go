// Package config содержит логику чтения конфигурации сервиса учёта бюджета.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultDataDir    = "."
	defaultConfirmTTL = 5 * time.Minute
)

// Config содержит параметры конфигурации сервиса учёта бюджета.
type Config struct {
	RunAddress  string        `env:"RUN_ADDRESS"`
	DataDir     string        `env:"DATA_DIR"`
	DatabaseURI string        `env:"DATABASE_URI"`
	AuthSecret  string        `env:"AUTH_SECRET"`
	ConfirmTTL  time.Duration `env:"CONFIRM_TTL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDataDir := cfg.DataDir
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envConfirmTTL := cfg.ConfirmTTL

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DataDir, "f", defaultDataDir, "directory with users.json and budget_data.json")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, enables the PostgreSQL storage")
	flag.StringVar(&cfg.AuthSecret, "k", "", "auth cookie signing key")
	flag.DurationVar(&cfg.ConfirmTTL, "t", defaultConfirmTTL, "lifetime of reset confirmation tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDataDir != "" {
		cfg.DataDir = envDataDir
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envConfirmTTL != 0 {
		cfg.ConfirmTTL = envConfirmTTL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.ConfirmTTL <= 0 {
		cfg.ConfirmTTL = defaultConfirmTTL
	}

	return cfg, nil
}
