package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cfguard/internal/app"
	"cfguard/internal/config"
	"cfguard/internal/logger"
)

const (
	exitOK      = 0
	exitSetup   = 1
	exitAborted = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	defPath := os.Getenv("CF_GUARD_CONFIG")
	if defPath == "" {
		defPath = config.DefaultPath
	}
	path := flag.String("config", defPath, "path to the guard configuration file")
	loop := flag.Duration("loop", 0, "run continuously with this interval instead of once (overrides LOOP_INTERVAL)")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cfguard: %v\n", err)
		return exitSetup
	}
	if *loop > 0 {
		cfg.LoopInterval = *loop
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Object("config", cfg).Msg("starting cfguard")

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("init failed")
		return exitSetup
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LoopInterval > 0 {
		if err := a.Run(ctx, cfg.LoopInterval); err != nil {
			log.Error().Err(err).Msg("shutdown with error")
			return exitSetup
		}
		return exitOK
	}

	start := time.Now()
	c, err := a.RunOnce(ctx)
	if err != nil {
		return exitAborted
	}
	if c.ID != "" {
		log.Info().
			Str("cycle_id", c.ID).
			Str("action", string(c.Action)).
			Dur("took", time.Since(start)).
			Msg("cycle complete")
	}
	return exitOK
}
