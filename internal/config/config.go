// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = ".env"

// NewConfig loads configuration from the environment (and an optional .env
// file) using viper with typed defaults and validation.
func NewConfig() (*Config, error) {
	return load(viper.New(), envFile)
}

func load(v *viper.Viper, dotenv string) (*Config, error) {
	if envMap, err := godotenv.Read(dotenv); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("http.request_timeout", 15*time.Second)

	v.SetDefault("github.token", "")
	v.SetDefault("github.graphql_url", "https://api.github.com/graphql")
	v.SetDefault("github.rest_url", "https://api.github.com/")
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.refresh_token", "")
	v.SetDefault("github.max_attempts", 3)
	v.SetDefault("github.retry_initial_interval", 300*time.Millisecond)
	v.SetDefault("github.batch_size", 50)

	v.SetDefault("dashboard.polling_interval", 60*time.Second)
	v.SetDefault("dashboard.min_polling_interval", 5*time.Second)
	v.SetDefault("dashboard.selected_repos", []string{})
	v.SetDefault("dashboard.preferences_file", "preferences.yaml")
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"server.host",
		"server.port",
		"server.shutdown_timeout",
		"http.request_timeout",
		"github.token",
		"github.graphql_url",
		"github.rest_url",
		"github.client_id",
		"github.client_secret",
		"github.refresh_token",
		"github.max_attempts",
		"github.retry_initial_interval",
		"github.batch_size",
		"dashboard.polling_interval",
		"dashboard.min_polling_interval",
		"dashboard.selected_repos",
		"dashboard.preferences_file",
	}

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
