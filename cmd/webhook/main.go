package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"searchtrack/internal/config"
	"searchtrack/internal/connectors"
	"searchtrack/internal/logging"
	"searchtrack/internal/pipeline"
	"searchtrack/internal/server"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Validate())

	log := logging.New(cfg, "webhook")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := connectors.Open(ctx, cfg)
	must(err)
	defer backend.Close()

	p := pipeline.New(backend.Table, cfg, pipeline.WithObserver(pipeline.Observers{
		pipeline.LogObserver{Log: log},
		pipeline.RunRecorder{DB: backend.Runs, Log: log},
	}))

	svc := server.NewService(cfg, p, log)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
