package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/alertstore"
	"inventory-ledger/internal/core"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(5 * 24 * time.Hour)
	later := now.Add(90 * 24 * time.Hour)
	ceiling := d("100")
	th := core.Thresholds{LowStock: d("5"), OverstockCeiling: &ceiling, ExpiryWindow: 30 * 24 * time.Hour}

	row := func(qty, reserved string, exp *time.Time) core.StockItem {
		it := core.StockItem{ProductID: uuid.New(), LocationID: uuid.New(), Qty: d(qty), ReservedQty: d(reserved), ExpiresAt: exp}
		it.AvailableQty = it.Qty.Sub(it.ReservedQty)
		return it
	}

	tests := []struct {
		name  string
		item  core.StockItem
		th    core.Thresholds
		want  core.AlertType
		level core.AlertLevel
	}{
		{"empty row", row("0", "0", nil), th, core.AlertZeroStock, core.LevelCritical},
		{"fully reserved", row("4", "4", nil), th, core.AlertZeroStock, core.LevelCritical},
		{"at threshold", row("5", "0", nil), th, core.AlertLowStock, core.LevelWarning},
		{"low wins over expiry", row("3", "0", &soon), th, core.AlertLowStock, core.LevelWarning},
		{"expiring lot", row("50", "0", &soon), th, core.AlertExpiringSoon, core.LevelWarning},
		{"expiry outside window", row("50", "0", &later), th, "", ""},
		{"over ceiling", row("150", "0", nil), th, core.AlertOverstock, core.LevelInfo},
		{"no ceiling configured", row("150", "0", nil), core.Thresholds{LowStock: d("5")}, "", ""},
		{"healthy", row("50", "10", nil), th, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.Evaluate(tt.item, tt.th, now)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.level, got.Level)
			assert.Equal(t, tt.item.ProductID, got.ProductID)
		})
	}
}

func TestThresholdPolicy_PerProductOverride(t *testing.T) {
	p := uuid.New()
	policy := core.ThresholdPolicy{
		Default:    core.Thresholds{LowStock: d("10")},
		PerProduct: map[uuid.UUID]core.Thresholds{p: {LowStock: d("1")}},
	}
	requireDecimal(t, "1", policy.For(p).LowStock)
	requireDecimal(t, "10", policy.For(uuid.New()).LowStock)
}

func TestAlertService_ScanRaisesDedupesAndResolves(t *testing.T) {
	f := newFixture(t)
	book := alertstore.NewMemory()
	alerts := core.NewAlertService(f.store, book)
	policy := core.ThresholdPolicy{Default: core.Thresholds{LowStock: d("5")}}

	f.stockIn(t, f.locA, "3", "1")
	f.stockIn(t, f.locB, "20", "1")

	res, err := alerts.Scan(f.ctx, policy)
	require.NoError(t, err)
	require.Len(t, res.Raised, 1)
	assert.Equal(t, core.AlertLowStock, res.Raised[0].Type)
	assert.Equal(t, f.locA, res.Raised[0].LocationID)
	assert.Equal(t, core.AlertActive, res.Raised[0].Status)
	assert.Equal(t, 1, res.Open)

	res, err = alerts.Scan(f.ctx, policy)
	require.NoError(t, err)
	assert.Empty(t, res.Raised, "an open alert is not raised twice")
	assert.Equal(t, 1, res.Open)

	all, err := alerts.List(f.ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	acked, err := alerts.Acknowledge(f.ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, core.AlertAcknowledged, acked.Status)
	assert.NotNil(t, acked.AcknowledgedAt)

	f.stockIn(t, f.locA, "10", "1")
	res, err = alerts.Scan(f.ctx, policy)
	require.NoError(t, err)
	require.Len(t, res.Resolved, 1)
	assert.Equal(t, core.AlertResolved, res.Resolved[0].Status)
	assert.Zero(t, res.Open)

	_, err = alerts.Acknowledge(f.ctx, all[0].ID)
	require.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = alerts.Resolve(f.ctx, uuid.New())
	require.ErrorIs(t, err, core.ErrNotFound)

	// The condition returning after resolution opens a fresh alert.
	_, err = f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: f.locA, Delta: d("-13")})
	require.NoError(t, err)
	res, err = alerts.Scan(f.ctx, policy)
	require.NoError(t, err)
	require.Len(t, res.Raised, 1)
	assert.Equal(t, core.AlertZeroStock, res.Raised[0].Type)
	assert.NotEqual(t, all[0].ID, res.Raised[0].ID)
}
