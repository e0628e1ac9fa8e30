// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/games.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	// a missing .env is fine; real deployments set the environment
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
