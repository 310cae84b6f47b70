package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/api"
	"github.com/FadeevMax/test-web-sop/internal/app"
	"github.com/FadeevMax/test-web-sop/internal/config"
	"github.com/FadeevMax/test-web-sop/internal/logging"
	"github.com/FadeevMax/test-web-sop/internal/pipeline"
)

func main() {
	cfg := config.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			logging.New("error", "json").Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("wire runtime", "error", err)
		os.Exit(1)
	}

	orch := pipeline.NewOrchestrator(cfg, rt.Deps(), log)
	orch.Start(ctx)

	srv := api.NewServer(orch, rt.Lister(), rt.Tagger, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		rt.Close()
	}()

	log.Info("starting sopchunk", "port", cfg.Port, "sinks", orch.SinkNames())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
