package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AlertType string

const (
	AlertZeroStock    AlertType = "zero_stock"
	AlertLowStock     AlertType = "low_stock"
	AlertOverstock    AlertType = "overstock"
	AlertExpiringSoon AlertType = "expiring_soon"
)

type AlertLevel string

const (
	LevelCritical AlertLevel = "critical"
	LevelWarning  AlertLevel = "warning"
	LevelInfo     AlertLevel = "info"
)

type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

var alertTransitions = newTransitionTable(map[AlertStatus][]AlertStatus{
	AlertActive:       {AlertAcknowledged, AlertResolved},
	AlertAcknowledged: {AlertResolved},
}, AlertResolved)

func ParseAlertStatus(s string) (AlertStatus, error) {
	st := AlertStatus(s)
	if !alertTransitions.known(st) {
		return "", invalid("status", "unknown alert status %q", s)
	}
	return st, nil
}

func (s AlertStatus) CanTransitionTo(next AlertStatus) bool { return alertTransitions.allows(s, next) }

// Open reports whether the alert still counts for deduplication.
func (s AlertStatus) Open() bool { return s != AlertResolved }

// StockAlert is derived from a StockItem. It is bookkeeping only; nothing in the ledger
// reads it.
type StockAlert struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	LocationID     uuid.UUID       `json:"location_id"`
	LotNumber      string          `json:"lot_number,omitempty"`
	Type           AlertType       `json:"alert_type"`
	Level          AlertLevel      `json:"alert_level"`
	Status         AlertStatus     `json:"status"`
	Message        string          `json:"message"`
	Qty            decimal.Decimal `json:"qty"`
	AvailableQty   decimal.Decimal `json:"available_qty"`
	CreatedAt      time.Time       `json:"created_at"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
}

// DedupKey identifies the condition an alert tracks.
func (a StockAlert) DedupKey() string {
	return StockKey{ProductID: a.ProductID, LocationID: a.LocationID, LotNumber: a.LotNumber}.String() + "/" + string(a.Type)
}

// Thresholds configures Evaluate. A nil OverstockCeiling disables overstock alerts and a
// zero ExpiryWindow disables expiry alerts.
type Thresholds struct {
	LowStock         decimal.Decimal
	OverstockCeiling *decimal.Decimal
	ExpiryWindow     time.Duration
}

// ThresholdPolicy resolves thresholds per product, falling back to Default.
type ThresholdPolicy struct {
	Default    Thresholds
	PerProduct map[uuid.UUID]Thresholds
}

func (p ThresholdPolicy) For(productID uuid.UUID) Thresholds {
	if t, ok := p.PerProduct[productID]; ok {
		return t
	}
	return p.Default
}

// Evaluate returns the alert a stock row currently warrants, or nil. At most one alert
// is returned, in priority order zero_stock, low_stock, expiring_soon, overstock.
// It does not assign an ID or status.
func Evaluate(item StockItem, th Thresholds, now time.Time) *StockAlert {
	mk := func(t AlertType, lvl AlertLevel, msg string) *StockAlert {
		return &StockAlert{
			ProductID:    item.ProductID,
			LocationID:   item.LocationID,
			LotNumber:    item.LotNumber,
			Type:         t,
			Level:        lvl,
			Message:      msg,
			Qty:          item.Qty,
			AvailableQty: item.AvailableQty,
		}
	}

	switch {
	case item.AvailableQty.IsZero():
		return mk(AlertZeroStock, LevelCritical, "no stock available")
	case item.AvailableQty.IsPositive() && item.AvailableQty.LessThanOrEqual(th.LowStock):
		return mk(AlertLowStock, LevelWarning,
			fmt.Sprintf("available %s at or below threshold %s", item.AvailableQty, th.LowStock))
	}
	if th.ExpiryWindow > 0 && item.ExpiresAt != nil && item.Qty.IsPositive() && item.ExpiresAt.Before(now.Add(th.ExpiryWindow)) {
		return mk(AlertExpiringSoon, LevelWarning,
			fmt.Sprintf("lot expires %s", item.ExpiresAt.Format(time.DateOnly)))
	}
	if th.OverstockCeiling != nil && item.Qty.GreaterThan(*th.OverstockCeiling) {
		return mk(AlertOverstock, LevelInfo,
			fmt.Sprintf("on hand %s above ceiling %s", item.Qty, *th.OverstockCeiling))
	}
	return nil
}

// ApplyAlertStatus moves a to status to and stamps the matching timestamp. AlertBook
// implementations use it so the lifecycle rules live in one place.
func ApplyAlertStatus(a *StockAlert, to AlertStatus, now time.Time) error {
	if !a.Status.CanTransitionTo(to) {
		return &TransitionError{Entity: "alert", ID: a.ID, From: string(a.Status), To: string(to)}
	}
	a.Status = to
	switch to {
	case AlertAcknowledged:
		a.AcknowledgedAt = &now
	case AlertResolved:
		a.ResolvedAt = &now
	}
	return nil
}
