package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/core"
)

func TestPurchaseOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to core.PurchaseOrderStatus
		want     bool
	}{
		{core.PODraft, core.POSent, true},
		{core.PODraft, core.POConfirmed, false},
		{core.PODraft, core.POCancelled, true},
		{core.POSent, core.POConfirmed, true},
		{core.POConfirmed, core.POPartiallyReceived, true},
		{core.POConfirmed, core.POReceived, true},
		{core.POPartiallyReceived, core.POPartiallyReceived, true},
		{core.POPartiallyReceived, core.POCancelled, false},
		{core.POReceived, core.POCancelled, false},
		{core.POCancelled, core.PODraft, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, core.POReceived.IsTerminal())
	assert.True(t, core.POCancelled.IsTerminal())
	assert.False(t, core.POSent.IsTerminal())
	assert.True(t, core.POPartiallyReceived.IsOpen())
	assert.False(t, core.PODraft.IsOpen())
}

func TestSalesOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to core.SalesOrderStatus
		want     bool
	}{
		{core.SOPending, core.SOConfirmed, true},
		{core.SOPending, core.SOProcessing, false},
		{core.SOConfirmed, core.SOProcessing, true},
		{core.SOProcessing, core.SOPicked, true},
		{core.SOPicked, core.SOPacked, true},
		{core.SOPacked, core.SOPacked, true},
		{core.SOPacked, core.SOShipped, true},
		{core.SOPacked, core.SOCancelled, true},
		{core.SOShipped, core.SOCancelled, false},
		{core.SOShipped, core.SODelivered, true},
		{core.SODelivered, core.SOShipped, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, core.SOPicked.HoldsReservations())
	assert.False(t, core.SOPending.HoldsReservations())
	assert.False(t, core.SOShipped.HoldsReservations())
}

func TestParseStatus(t *testing.T) {
	st, err := core.ParsePurchaseOrderStatus("partially_received")
	require.NoError(t, err)
	assert.Equal(t, core.POPartiallyReceived, st)
	_, err = core.ParsePurchaseOrderStatus("approved")
	require.ErrorIs(t, err, core.ErrValidation)

	so, err := core.ParseSalesOrderStatus("delivered")
	require.NoError(t, err)
	assert.Equal(t, core.SODelivered, so)
	_, err = core.ParseSalesOrderStatus("")
	require.ErrorIs(t, err, core.ErrValidation)

	al, err := core.ParseAlertStatus("acknowledged")
	require.NoError(t, err)
	assert.Equal(t, core.AlertAcknowledged, al)
	_, err = core.ParseAlertStatus("snoozed")
	require.ErrorIs(t, err, core.ErrValidation)
}
