package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/kloatscheeten/scoreboard-backend/internal/auth"
	"github.com/kloatscheeten/scoreboard-backend/internal/config"
	"github.com/kloatscheeten/scoreboard-backend/internal/httpapi"
	"github.com/kloatscheeten/scoreboard-backend/internal/hub"
	"github.com/kloatscheeten/scoreboard-backend/internal/ratelimit"
	"github.com/kloatscheeten/scoreboard-backend/internal/store"
	"github.com/kloatscheeten/scoreboard-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}

	gate := auth.NewGate()
	limiter := ratelimit.New(time.Minute)
	defer limiter.Close()

	h := hub.New(ctx, hub.Config{Store: st, Gate: gate, Limiter: limiter, Log: log})
	api := httpapi.NewAPI(st, limiter, log)
	wsHandler := ws.NewHandler(h, limiter, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: httpapi.SetupRoutes(api, wsHandler, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.Int("port", cfg.Port), zap.String("db", cfg.DBPath))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		h.Inbox() <- hub.Shutdown{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
