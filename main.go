// Package main provides the entry point for the Discord voice bot application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/lucidwire/discordvoice/internal/app"
	"github.com/lucidwire/discordvoice/internal/bot"
	"github.com/lucidwire/discordvoice/internal/commands"
	"github.com/lucidwire/discordvoice/internal/config"
	"github.com/lucidwire/discordvoice/internal/discordgw"
	"github.com/lucidwire/discordvoice/internal/infrastructure"
	"github.com/lucidwire/discordvoice/internal/voice"
	pkginfra "github.com/lucidwire/discordvoice/pkg/infrastructure"
)

func main() {
	configPath := "config.yaml"

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// External service modules
		discordgw.Module,

		// Application modules
		voice.Module,
		commands.Module,
		bot.Module,

		// Supply the config path
		fx.Supply(configPath),

		// Configure Fx to use our Zap logger for its own internal logging
		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go application.Run()

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	err := application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
