package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/voicestack/voicestack/internal/logger"
)

// InitConfig reads the environment into the raw first-stage form and
// resolves it. The ValidationResult is always non-nil; the Config is nil
// when the global section is unusable.
func InitConfig() (*Config, *ValidationResult, error) {
	raw := &RawConfig{
		Logger: &logger.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(raw)
	if err != nil {
		return nil, nil, err
	}

	cfg, res := Resolve(raw)
	return cfg, res, nil
}
