package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/naka-gawa/pr-dashboard/internal/config"
	"github.com/naka-gawa/pr-dashboard/internal/events"
	"github.com/naka-gawa/pr-dashboard/internal/preferences"
	"github.com/naka-gawa/pr-dashboard/internal/refresh"
	"github.com/naka-gawa/pr-dashboard/internal/transport/http/middleware"
	"github.com/naka-gawa/pr-dashboard/internal/transport/http/server/handlers"
	"github.com/naka-gawa/pr-dashboard/internal/usecase"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the live pull request dashboard over HTTP",
	Long:  `Keeps the aggregated pull requests of the selected repositories fresh by polling GitHub and serves them, together with the review and merge actions, as a JSON HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(cmd); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().String("preferences", "", "Preferences file (overrides dashboard.preferences_file)")
}

func serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("preferences") {
		cfg.Dashboard.PreferencesFile, _ = cmd.Flags().GetString("preferences")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := serviceLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	c, err := newComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	c.provider.HandleUnauthenticated(func() {
		log.Warnw("set a valid GITHUB_TOKEN and restart to resume refreshing")
	})

	bus := events.NewBus()
	controller := refresh.NewController(
		usecase.NewAggregator(c.github, log),
		usecase.NewDetailService(c.github, log),
		c.provider,
		bus,
		log,
		refresh.Options{
			BatchSize:    cfg.GitHub.BatchSize,
			CycleTimeout: cfg.HTTP.RequestTimeout * time.Duration(cfg.GitHub.MaxAttempts),
		},
	)
	executor := usecase.NewExecutor(c.github, bus, log)

	store := preferences.NewStore(cfg.Dashboard.PreferencesFile, preferences.Preferences{
		SelectedRepos:     cfg.Dashboard.SelectedRepos,
		PollingIntervalMS: cfg.Dashboard.PollingInterval.Milliseconds(),
	}, cfg.Dashboard.MinPollingInterval)
	prefs, err := store.Load()
	if err != nil {
		return err
	}
	if err := preferences.Apply(prefs, controller, store.Floor()); err != nil {
		return err
	}
	if watcher, err := preferences.NewWatcher(store, controller, log); err != nil {
		log.Warnw("preferences will not be reloaded on change", "error", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		_ = controller.Run(ctx)
	}()

	serv := fiber.New(fiber.Config{
		ReadTimeout:           cfg.HTTP.RequestTimeout,
		WriteTimeout:          cfg.HTTP.RequestTimeout,
		DisableStartupMessage: true,
	})
	serv.Use(recover.New())
	serv.Use(requestid.New())
	serv.Use(middleware.RequestLogger(log))

	h := handlers.NewHandler(log, controller, executor, c.github, store, handlers.Options{
		Timeout:           cfg.HTTP.RequestTimeout,
		OnUnauthenticated: c.provider.OnUnauthenticated,
	})
	h.Register(serv)

	go func() {
		log.Infow("listening", "addr", cfg.ServerAddr())
		if err := serv.Listen(cfg.ServerAddr()); err != nil {
			log.Errorw("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = serv.Shutdown()
		<-controllerDone
		close(done)
	}()

	select {
	case <-done:
		log.Infow("server stopped")
	case <-shutdownCtx.Done():
		log.Warnw("server shutdown timeout", "timeout", cfg.Server.ShutdownTimeout)
	}
	return nil
}
