// Package serve starts the HTTP API server.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/redharvest/redharvest-go/internal/api"
	"github.com/redharvest/redharvest-go/internal/blobstore"
	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/inference"
	"github.com/redharvest/redharvest-go/internal/localstore"
	"github.com/redharvest/redharvest-go/internal/logging"
	"github.com/redharvest/redharvest-go/internal/observability"
	"github.com/redharvest/redharvest-go/internal/security"
)

const shutdownTimeout = 10 * time.Second

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

// openStore picks the configured persistence provider.
func openStore(settings *conf.Settings) (datastore.Interface, error) {
	var store datastore.Interface
	switch settings.Output.Provider {
	case conf.ProviderLocal:
		store = localstore.New(settings)
	case conf.ProviderDatabase:
		var err error
		store, err = datastore.New(settings)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown output provider %q", settings.Output.Provider)
	}

	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("serve")
	if logger == nil {
		logger = slog.Default()
	}

	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	if settings.Main.Log.Enabled {
		fileLogger, closeLogger, err := logging.NewFileLogger(settings.Main.Log.Path, "serve", slog.LevelInfo)
		if err != nil {
			logger.Warn("file logging disabled", "path", settings.Main.Log.Path, "error", err)
		} else {
			logger = fileLogger
			defer func() { _ = closeLogger() }()
		}
	}

	store, err := openStore(settings)
	if err != nil {
		return fmt.Errorf("failed to open data store: %w", err)
	}
	defer func() { _ = store.Close() }()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	inferenceClient := inference.New(settings.Inference.Endpoint, settings.Inference.Timeout)
	defer inferenceClient.Close()

	blobs := blobstore.New(settings)
	authManager := security.New(settings, store)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api.New(e, store, settings, inferenceClient, blobs, authManager, metrics)

	addr := fmt.Sprintf(":%s", settings.WebServer.Port)
	errChan := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	logger.Info("server started",
		"addr", addr,
		"provider", settings.Output.Provider,
		"inference_endpoint", settings.Inference.Endpoint)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(ctx)
}
