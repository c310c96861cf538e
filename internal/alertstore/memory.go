// Package alertstore holds core.AlertBook implementations.
package alertstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory-ledger/internal/core"
)

// Memory is a process-local AlertBook.
type Memory struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]core.StockAlert
	open   map[string]uuid.UUID
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		alerts: make(map[uuid.UUID]core.StockAlert),
		open:   make(map[string]uuid.UUID),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ core.AlertBook = (*Memory)(nil)

func (m *Memory) Raise(_ context.Context, a core.StockAlert) (core.StockAlert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.open[a.DedupKey()]; ok {
		return m.alerts[id], false, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = core.AlertActive
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.alerts[a.ID] = a
	m.open[a.DedupKey()] = a.ID
	return a, true, nil
}

func (m *Memory) Acknowledge(_ context.Context, id uuid.UUID) (core.StockAlert, error) {
	return m.move(id, core.AlertAcknowledged)
}

func (m *Memory) Resolve(_ context.Context, id uuid.UUID) (core.StockAlert, error) {
	return m.move(id, core.AlertResolved)
}

func (m *Memory) move(id uuid.UUID, to core.AlertStatus) (core.StockAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return core.StockAlert{}, fmt.Errorf("alert %s: %w", id, core.ErrNotFound)
	}
	if err := core.ApplyAlertStatus(&a, to, m.now()); err != nil {
		return core.StockAlert{}, err
	}
	m.alerts[id] = a
	if to == core.AlertResolved {
		delete(m.open, a.DedupKey())
	}
	return a, nil
}

func (m *Memory) List(_ context.Context, status *core.AlertStatus) ([]core.StockAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.StockAlert
	for _, a := range m.alerts {
		if status == nil || a.Status == *status {
			out = append(out, a)
		}
	}
	sortAlerts(out)
	return out, nil
}

func sortAlerts(out []core.StockAlert) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
}
