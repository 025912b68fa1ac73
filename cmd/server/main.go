package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/graphlearn/internal/app"
	"github.com/OFFIS-RIT/graphlearn/internal/config"
	"github.com/OFFIS-RIT/graphlearn/internal/server"
	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvBool("LOG_JSON", false),
	})
	logger.Init(consoleLogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialise application", "err", err)
	}
	defer a.Close()

	if err := server.Init(ctx, a); err != nil {
		logger.Error("Server exited with error", "err", err)
	}
}
