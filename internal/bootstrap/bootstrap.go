// Package bootstrap builds the ApplicationService from a Config. The server and ledgerctl
// share it so both processes run against the same stack.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"inventory-ledger/internal/ai"
	"inventory-ledger/internal/alertstore"
	"inventory-ledger/internal/app"
	"inventory-ledger/internal/channelsync"
	"inventory-ledger/internal/config"
	"inventory-ledger/internal/core"
	"inventory-ledger/internal/db"
	"inventory-ledger/internal/forecast"
	"inventory-ledger/internal/memstore"
	"inventory-ledger/migrations"
)

const redisKeyPrefix = "inventory:"

// Runtime is a wired ApplicationService plus the resources it holds open.
type Runtime struct {
	Service app.ApplicationService

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// New connects the configured store, alert book, forecaster and channel feed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}

	var store core.Store
	switch cfg.Store {
	case config.StoreMemory:
		store = memstore.New(cfg.LockTimeout)
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("database: %w", err))
		}
		rt.closers = append(rt.closers, pool.Close)
		if pending, err := migrations.Pending(ctx, pool); err != nil {
			log.Warn("could not check migrations", zap.Error(err))
		} else if len(pending) > 0 {
			log.Warn("database has pending migrations; run migrate", zap.Strings("pending", pending))
		}
		store = db.NewStore(pool, cfg.LockTimeout)
	}

	var book core.AlertBook
	if cfg.RedisURL != "" {
		rdb, err := alertstore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		book = alertstore.NewRedis(rdb, redisKeyPrefix, log)
	} else {
		book = alertstore.NewMemory()
	}

	var forecaster core.Forecaster
	switch cfg.Forecaster {
	case config.ForecasterOpenAI:
		forecaster = ai.NewForecaster(cfg.OpenAIAPIKey, cfg.OpenAIModel, store, log)
	default:
		forecaster = forecast.NewMovingAverage(store, forecast.DefaultWindow)
	}

	thresholds := core.ThresholdPolicy{Default: core.Thresholds{
		LowStock:         cfg.LowStockThreshold,
		OverstockCeiling: cfg.OverstockCeiling,
		ExpiryWindow:     cfg.ExpiryWindow,
	}}

	services := app.NewServices(store, book, forecaster, thresholds,
		core.WithLogger(log),
		core.WithMaxAttempts(cfg.TxMaxAttempts),
	)

	if len(cfg.KafkaBrokers) > 0 {
		pub := channelsync.NewPublisher(
			channelsync.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAvailabilityTopic), store, log)
		rt.closers = append(rt.closers, func() {
			if err := pub.Close(); err != nil {
				log.Warn("failed to close channel writer", zap.Error(err))
			}
		})
		services.Publisher = pub
	}

	rt.Service = app.NewAppService(services, log)
	return rt, nil
}
