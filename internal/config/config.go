package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken         string        `envconfig:"BOT_TOKEN" required:"true"`
	OpenAIKey        string        `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIModel      string        `envconfig:"OPENAI_MODEL"` // empty -> gpt-4o-mini
	DBPath           string        `envconfig:"DB_PATH" default:"./data/fitai.db"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`         // debug|info|warn|error
	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`        // healthz
	InactivityWindow time.Duration `envconfig:"INACTIVITY_WINDOW" default:"168h"` // 7 days
	MisfireGrace     time.Duration `envconfig:"MISFIRE_GRACE" default:"1m"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
