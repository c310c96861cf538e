package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	webAdapter "inventory-ledger/internal/adapters/web"
	"inventory-ledger/internal/bootstrap"
	"inventory-ledger/internal/config"
	"inventory-ledger/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.IsDev()); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	l := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, l)
	if err != nil {
		l.Fatal("startup failed", zap.Error(err))
	}
	defer rt.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           webAdapter.NewHandler(rt.Service, cfg.AllowedOrigins, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.Store))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			l.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		l.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
