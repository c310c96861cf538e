package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inventory-ledger/internal/metrics"
)

// AlertBook stores alert lifecycle state.
type AlertBook interface {
	// Raise stores a as active unless an open alert with the same DedupKey exists, in
	// which case that alert is returned with created=false.
	Raise(ctx context.Context, a StockAlert) (alert StockAlert, created bool, err error)
	Acknowledge(ctx context.Context, id uuid.UUID) (StockAlert, error)
	Resolve(ctx context.Context, id uuid.UUID) (StockAlert, error)
	// List returns alerts with the given status, or all alerts for nil.
	List(ctx context.Context, status *AlertStatus) ([]StockAlert, error)
}

// ScanResult lists what a scan changed.
type ScanResult struct {
	Raised   []StockAlert `json:"raised"`
	Resolved []StockAlert `json:"resolved"`
	Open     int          `json:"open"`
}

// AlertService evaluates the stock snapshot against thresholds. It reads the ledger and
// never writes to it.
type AlertService struct {
	store Querier
	book  AlertBook
	s     settings
}

func NewAlertService(store Querier, book AlertBook, opts ...Option) *AlertService {
	return &AlertService{store: store, book: book, s: newSettings(opts)}
}

// Scan raises alerts for rows that warrant one and resolves open alerts whose
// condition has cleared.
func (a *AlertService) Scan(ctx context.Context, policy ThresholdPolicy) (*ScanResult, error) {
	items, err := a.store.StockItems(ctx, StockFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock snapshot: %w", err)
	}
	now := a.s.now()

	firing := make(map[string]bool)
	res := &ScanResult{}
	for _, it := range items {
		al := Evaluate(it, policy.For(it.ProductID), now)
		if al == nil {
			continue
		}
		firing[al.DedupKey()] = true
		al.ID = uuid.New()
		al.Status = AlertActive
		al.CreatedAt = now
		stored, created, err := a.book.Raise(ctx, *al)
		if err != nil {
			return nil, fmt.Errorf("failed to raise alert: %w", err)
		}
		if created {
			metrics.AlertsRaised.WithLabelValues(string(stored.Type)).Inc()
			res.Raised = append(res.Raised, stored)
		}
	}

	open, err := a.openAlerts(ctx)
	if err != nil {
		return nil, err
	}
	for _, al := range open {
		if firing[al.DedupKey()] {
			res.Open++
			continue
		}
		resolved, err := a.book.Resolve(ctx, al.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve alert %s: %w", al.ID, err)
		}
		res.Resolved = append(res.Resolved, resolved)
	}
	a.s.log.Info("alert scan finished",
		zap.Int("rows", len(items)),
		zap.Int("raised", len(res.Raised)),
		zap.Int("resolved", len(res.Resolved)))
	return res, nil
}

func (a *AlertService) Acknowledge(ctx context.Context, id uuid.UUID) (StockAlert, error) {
	return a.book.Acknowledge(ctx, id)
}

func (a *AlertService) Resolve(ctx context.Context, id uuid.UUID) (StockAlert, error) {
	return a.book.Resolve(ctx, id)
}

func (a *AlertService) List(ctx context.Context, status *AlertStatus) ([]StockAlert, error) {
	return a.book.List(ctx, status)
}

func (a *AlertService) openAlerts(ctx context.Context) ([]StockAlert, error) {
	var out []StockAlert
	for _, st := range []AlertStatus{AlertActive, AlertAcknowledged} {
		list, err := a.book.List(ctx, &st)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s alerts: %w", st, err)
		}
		out = append(out, list...)
	}
	return out, nil
}
