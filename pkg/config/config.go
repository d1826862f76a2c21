package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	OpenAI    OpenAIConfig    `envPrefix:"OPENAI_"`
	Assistant AssistantConfig `envPrefix:"ASSISTANT_"`
	Log       LogConfig       `envPrefix:"LOG_"`

	// Optional YAML catalog; the embedded catalog is used when empty.
	CatalogPath string `env:"CATALOG_PATH"`
}

type ServerConfig struct {
	// HTTP listen address, e.g. ":8080"
	Address string `env:"ADDRESS" envDefault:":8080"`
}

type OpenAIConfig struct {
	// Left empty the server still starts; assistant calls then fail with a
	// configuration error.
	APIKey    string `env:"API_KEY"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://api.openai.com/v1/"`
	Model     string `env:"MODEL" envDefault:"gpt-3.5-turbo"`
	MaxTokens int    `env:"MAX_TOKENS" envDefault:"1024"`
}

type AssistantConfig struct {
	// strict | permissive
	Mode           string        `env:"MODE" envDefault:"permissive"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"2m"`
	RecommendLimit int           `env:"RECOMMEND_LIMIT" envDefault:"3"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"true"`
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (Config, error) {
	// Load .env if available; ignore error if file does not exist
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
