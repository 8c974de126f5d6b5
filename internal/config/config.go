package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	// Room every client lands in when it doesn't name one.
	DefaultRoom string `env:"DEFAULT_ROOM" envDefault:"default" validate:"required"`

	WsMaxMessageBytes int64 `env:"WS_MAX_MESSAGE_BYTES" envDefault:"1048576" validate:"min=1024"`

	// Budget for the ephemeral high-frequency events (stroke previews,
	// cursor positions) per connection. Frames over budget are dropped.
	WsProgressRate  float64 `env:"WS_PROGRESS_RATE"  envDefault:"60"  validate:"min=1"`
	WsProgressBurst int     `env:"WS_PROGRESS_BURST" envDefault:"120" validate:"min=1"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
