package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/jask/simdash/internal/config"
	"github.com/jask/simdash/internal/logging"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("simdash"),
		kong.Description("Live terminal dashboard for simulation metrics."),
		kong.UsageOnError(),
	)

	if cli.Config != "" {
		if err := os.Setenv("SIMDASH_CONFIG", cli.Config); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	logging.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(&Context{Ctx: ctx, Config: cfg})
	kctx.FatalIfErrorf(err)
}
