package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inventory-ledger/internal/core"
)

// lockTable hands out one exclusive lock per name. Each lock is a buffered channel of
// size one: a send acquires it, a receive releases it.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (t *lockTable) slot(name string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		t.slots[name] = ch
	}
	return ch
}

// acquire waits at most timeout for the lock. A timeout surfaces as core.ErrContention.
func (t *lockTable) acquire(ctx context.Context, name string, timeout time.Duration) error {
	ch := t.slot(name)
	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("lock %s not available after %s: %w", name, timeout, core.ErrContention)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *lockTable) release(name string) {
	<-t.slot(name)
}
