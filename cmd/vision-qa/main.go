package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/loresico/gemma3-vision-demo/internal/config"
	"github.com/loresico/gemma3-vision-demo/internal/web"
	"github.com/loresico/gemma3-vision-demo/pkg/answer"
	"github.com/loresico/gemma3-vision-demo/pkg/engine"
	"github.com/loresico/gemma3-vision-demo/pkg/llamacpp"
	"github.com/loresico/gemma3-vision-demo/pkg/ollama"
	"github.com/loresico/gemma3-vision-demo/pkg/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	eng, err := buildEngine(cfg)
	if err != nil {
		log.Fatalf("create engine: %v", err)
	}

	// Model load failure is fatal: the service cannot answer anything
	// without its handles.
	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.Timeout)
	defer cancel()

	log.Infof("loading model %s via %s...", cfg.Model.ID, eng.Name())
	svc, err := answer.New(loadCtx, eng, cfg.Model.ID,
		answer.WithGenerateOptions(types.GenerateOptions{
			Verbose:     cfg.Generation.Verbose,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
		}),
	)
	if err != nil {
		log.Fatalf("initialize answer service: %v", err)
	}
	log.Info("model loaded successfully")

	server := web.NewServer(svc, eng, web.Options{
		Theme:    cfg.UI.Theme,
		MaxDim:   cfg.Upload.MaxDim,
		MaxBytes: cfg.Upload.MaxBytes,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func buildEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Backend {
	case "ollama":
		url := cfg.Engine.URL
		if url == "" {
			url = "http://localhost:11434"
		}
		return ollama.NewClient(url)
	case "llamacpp":
		return llamacpp.NewClient(cfg.Engine.URL)
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Engine.Backend)
	}
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
