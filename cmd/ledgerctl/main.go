package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"inventory-ledger/internal/adapters/cli"
	"inventory-ledger/internal/app"
	"inventory-ledger/internal/bootstrap"
	"inventory-ledger/internal/config"
	"inventory-ledger/internal/logger"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var rt *bootstrap.Runtime
	svc := func() (app.ApplicationService, error) {
		if rt != nil {
			return rt.Service, nil
		}
		cfg, err := config.Load(nil)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := logger.Init(cfg.IsDev()); err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		if rt, err = bootstrap.New(ctx, cfg, logger.L()); err != nil {
			return nil, err
		}
		return rt.Service, nil
	}

	err := cli.NewRootCommand(svc).ExecuteContext(ctx)
	if rt != nil {
		rt.Close()
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
