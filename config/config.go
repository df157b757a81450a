package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env       string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080"`
	MongoURI  string `envconfig:"MONGO_URI" required:"true"`
	DBName    string `envconfig:"DB_NAME" required:"true"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// LoadEnv reads a .env file if one is present. Missing files are not an
// error; deployed environments set real env vars instead.
func LoadEnv() {
	_ = godotenv.Load()
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
