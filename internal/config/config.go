package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is loaded once at startup from config.toml plus environment
// variables. Secrets (database URL, tokens) come only from the environment.
type Config struct {
	ServiceHost string
	ServicePort int

	Database      DatabaseConfig
	JWT           JWTConfig
	Notifications NotificationsConfig
}

type DatabaseConfig struct {
	URL string // DATABASE_URL
}

type JWTConfig struct {
	Secret    string // JWT_SECRET
	ExpiresIn time.Duration
}

// NotificationsConfig controls the best-effort dispatcher. Enabled is read
// here once and passed to the dispatcher at construction.
type NotificationsConfig struct {
	Enabled       bool
	GatewayURL    string
	Token         string // WHATSAPP_TOKEN
	OperatorName  string
	OperatorPhone string
	Timeout       time.Duration
}

const (
	envDatabaseURL   = "DATABASE_URL"
	envJWTSecret     = "JWT_SECRET"
	envWhatsAppToken = "WHATSAPP_TOKEN"
)

func New() (*Config, error) {
	_ = godotenv.Load()

	configName := "config"
	if os.Getenv("CONFIG_NAME") != "" {
		configName = os.Getenv("CONFIG_NAME")
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("toml")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")

	viper.SetDefault("ServiceHost", "0.0.0.0")
	viper.SetDefault("ServicePort", 8080)
	viper.SetDefault("Notifications.Enabled", true)
	viper.SetDefault("Notifications.Timeout", 10*time.Second)
	viper.SetDefault("JWT.ExpiresIn", 12*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env cover the common setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg.Database.URL = os.Getenv(envDatabaseURL)
	cfg.JWT.Secret = os.Getenv(envJWTSecret)
	cfg.Notifications.Token = os.Getenv(envWhatsAppToken)

	log.Info("config parsed")

	return cfg, nil
}
