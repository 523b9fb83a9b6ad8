package main

import (
	"fmt"
	"log/slog"

	"github.com/redharvest/redharvest-go/cmd"
	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/logging"
)

func main() {
	logging.Init()
	if err := run(); err != nil {
		logging.Fatal("exiting", "error", err)
	}
}

func run() error {
	settings, err := conf.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	return cmd.RootCommand(settings).Execute()
}
