package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/geoglim/clipserver/internal/clip"
	"github.com/geoglim/clipserver/internal/config"
	"github.com/geoglim/clipserver/internal/dataset"
	"github.com/geoglim/clipserver/internal/logger"
	"github.com/geoglim/clipserver/internal/observability"
	"github.com/geoglim/clipserver/internal/registry"
	"github.com/geoglim/clipserver/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address, overrides ADDR")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "clipserver",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting clipserver",
		"addr", cfg.Addr,
		"version", Version,
		"data_dir", cfg.DataDir,
		"clip_workers", cfg.ClipWorkers)

	reg := registry.New(cfg)
	cache := dataset.NewCache(reg, nil, appLog)
	engine := clip.NewEngine(cfg.ClipWorkers, appLog)

	srv, err := server.New(cfg, appLog, reg, cache, engine)
	if err != nil {
		appLog.Error("server setup failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, observability.Handler())

		msrv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			log.Printf("metrics: listening on %s%s", cfg.Metrics.Addr, cfg.Metrics.Path)
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server exited: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := msrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics: shutdown error: %v", err)
			}
		}()
	}

	if err := srv.Run(ctx); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
