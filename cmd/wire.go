package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/naka-gawa/pr-dashboard/internal/auth"
	"github.com/naka-gawa/pr-dashboard/internal/config"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"github.com/naka-gawa/pr-dashboard/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// components are the pieces every command needs.
type components struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	provider *auth.Provider
	github   *gateway.GitHubGateway
}

// oneShotLogger discards all logs unless --verbose is set, keeping stdout
// for the command's JSON output.
func oneShotLogger(cmd *cobra.Command) *zap.SugaredLogger {
	verbose, _ := cmd.InheritedFlags().GetBool("verbose")
	if !verbose {
		return zap.NewNop().Sugar()
	}
	return logger.NewWriter(os.Stderr, zapcore.DebugLevel)
}

// serviceLogger logs at the configured level, or debug with --verbose.
func serviceLogger(cmd *cobra.Command, cfg *config.Config) (*zap.SugaredLogger, error) {
	level := cfg.Logging.Level
	if verbose, _ := cmd.InheritedFlags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logger.New(level)
}

func newComponents(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*components, error) {
	provider := auth.NewProvider(ctx, auth.Options{
		AccessToken:  cfg.GitHub.Token,
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		RefreshToken: cfg.GitHub.RefreshToken,
	}, log)

	gw, err := gateway.NewGitHubGateway(provider, log, gateway.Options{
		GraphQLURL:           cfg.GitHub.GraphQLURL,
		RESTURL:              cfg.GitHub.RESTURL,
		Timeout:              cfg.HTTP.RequestTimeout,
		MaxAttempts:          cfg.GitHub.MaxAttempts,
		RetryInitialInterval: cfg.GitHub.RetryInitialInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	return &components{cfg: cfg, log: log, provider: provider, github: gw}, nil
}

// mustOneShot builds the components for a one-shot command, exiting on failure.
func mustOneShot(cmd *cobra.Command) *components {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	c, err := newComponents(cmd.Context(), cfg, oneShotLogger(cmd))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := c.provider.Token(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: no usable GitHub credential, set GITHUB_TOKEN: %v\n", err)
		os.Exit(1)
	}
	return c
}
