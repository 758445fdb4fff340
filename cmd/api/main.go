package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/narasim-teja/Sorobon-Battles/internal/app"
	"github.com/narasim-teja/Sorobon-Battles/internal/config"
	"github.com/narasim-teja/Sorobon-Battles/internal/logging"
)

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("battles api stopped")
	}
}
