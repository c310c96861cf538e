package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"inventory-ledger/internal/metrics"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 20 * time.Millisecond
)

// Option configures the services in this package.
type Option func(*settings)

type settings struct {
	log          *zap.Logger
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{
		log:          zap.NewNop(),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxAttempts bounds how many times a transaction is run when it hits lock contention.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.retryBackoff = d
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// txRunner runs one business operation as a store transaction and reruns the whole
// transaction when it fails with ErrContention.
type txRunner struct {
	store Store
	settings
}

func (r txRunner) run(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := r.store.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrContention) {
			return err
		}
		if attempt >= r.maxAttempts {
			metrics.ContentionFailures.WithLabelValues(op).Inc()
			r.log.Warn("giving up after contention", zap.String("op", op), zap.Int("attempts", attempt), zap.Error(err))
			return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempt, err)
		}
		metrics.TxRetries.WithLabelValues(op).Inc()
		r.log.Debug("retrying after contention", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))

		if err := sleepCtx(ctx, r.backoff(attempt)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
}

// backoff grows linearly with the attempt number, with up to 100% jitter.
func (r txRunner) backoff(attempt int) time.Duration {
	base := r.retryBackoff * time.Duration(attempt)
	if base <= 0 {
		return 0
	}
	return base + rand.N(base)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
