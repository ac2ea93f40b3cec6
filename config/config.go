package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// CacheBackend selects "memory" or "redis".
	CacheBackend  string `mapstructure:"CACHE_BACKEND"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// BaseURL is the externally reachable address used to build OAuth
	// redirect URIs when a request host is unavailable.
	BaseURL string `mapstructure:"BASE_URL"`
	// AllowedRedirectDomains restricts dynamically built redirect URIs.
	// Empty means no restriction.
	AllowedRedirectDomains []string `mapstructure:"ALLOWED_REDIRECT_DOMAINS"`

	// SecretPrefix prefixes mirrored secret names in the secret store.
	SecretPrefix string `mapstructure:"SECRET_PREFIX"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/toolbridge/")
	v.AddConfigPath("$HOME/.toolbridge")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/toolbridge_dev")
	v.SetDefault("MONGO_DB_NAME", "toolbridge_dev")
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("SECRET_PREFIX", "toolbridge")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
