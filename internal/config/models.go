package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// Validate ensures the values are usable. A missing token is not an error:
// the dashboard starts unauthenticated and reports it.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.GitHub.GraphQLURL == "" || c.GitHub.RESTURL == "" {
		return errors.New("github.graphql_url and github.rest_url are required")
	}
	if c.GitHub.MaxAttempts < 1 {
		return errors.New("github.max_attempts must be at least 1")
	}
	if c.GitHub.BatchSize < 1 {
		return errors.New("github.batch_size must be at least 1")
	}
	if c.Dashboard.PollingInterval < 0 {
		return errors.New("dashboard.polling_interval must not be negative")
	}
	if c.Dashboard.MinPollingInterval <= 0 {
		return errors.New("dashboard.min_polling_interval must be positive")
	}
	if c.Dashboard.PreferencesFile == "" {
		return errors.New("dashboard.preferences_file is required")
	}
	return nil
}

// ServerAddr returns host:port for HTTP server binding.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HTTPConfig contains transport settings. RequestTimeout bounds each call
// to GitHub and each API request served.
type HTTPConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// GitHubConfig describes how to reach and authenticate against GitHub.
type GitHubConfig struct {
	Token                string        `mapstructure:"token"`
	GraphQLURL           string        `mapstructure:"graphql_url"`
	RESTURL              string        `mapstructure:"rest_url"`
	ClientID             string        `mapstructure:"client_id"`
	ClientSecret         string        `mapstructure:"client_secret"`
	RefreshToken         string        `mapstructure:"refresh_token"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	BatchSize            int           `mapstructure:"batch_size"`
}

// DashboardConfig holds the initial dashboard preferences.
type DashboardConfig struct {
	PollingInterval    time.Duration `mapstructure:"polling_interval"`
	MinPollingInterval time.Duration `mapstructure:"min_polling_interval"`
	SelectedRepos      []string      `mapstructure:"selected_repos"`
	PreferencesFile    string        `mapstructure:"preferences_file"`
}
