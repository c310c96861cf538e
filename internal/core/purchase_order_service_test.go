package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/core"
)

func (f *fixture) confirmedPO(t *testing.T, lines ...core.PurchaseOrderLineInput) *core.PurchaseOrder {
	t.Helper()
	po, err := f.pos.CreatePurchaseOrder(f.ctx, "Acme Supply", lines, "")
	require.NoError(t, err)
	_, err = f.pos.Send(f.ctx, po.ID)
	require.NoError(t, err)
	po, err = f.pos.Confirm(f.ctx, po.ID)
	require.NoError(t, err)
	return po
}

func TestPurchaseOrder_PartialReceiptsThenOverReceipt(t *testing.T) {
	f := newFixture(t)

	po, err := f.pos.CreatePurchaseOrder(f.ctx, "Acme Supply", []core.PurchaseOrderLineInput{
		{ProductID: f.product, QtyOrdered: d("100"), UnitCost: d("2.5")},
	}, "spring restock")
	require.NoError(t, err)
	assert.Equal(t, core.PODraft, po.Status)
	line := po.Lines[0].ID

	_, err = f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: line, Qty: d("1")}})
	require.ErrorIs(t, err, core.ErrInvalidTransition, "drafts accept no receipts")

	_, err = f.pos.Send(f.ctx, po.ID)
	require.NoError(t, err)
	_, err = f.pos.Confirm(f.ctx, po.ID)
	require.NoError(t, err)

	res, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: line, Qty: d("40")}})
	require.NoError(t, err)
	assert.Equal(t, core.POPartiallyReceived, res.Order.Status)
	require.Len(t, res.Moves, 1)
	assert.Equal(t, core.ReasonPurchase, res.Moves[0].Reason)
	assert.Positive(t, res.Moves[0].Seq)
	require.NotNil(t, res.Moves[0].ToLocationID)
	assert.Equal(t, f.locA, *res.Moves[0].ToLocationID, "no location means the default location")
	requireDecimal(t, "40", res.Order.Lines[0].QtyReceived)

	it := f.item(t, f.locA)
	requireDecimal(t, "40", it.Qty)
	requireDecimal(t, "2.5", it.CostPerUnit)

	_, err = f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: line, Qty: d("70")}})
	require.ErrorIs(t, err, core.ErrOverReceipt)
	requireDecimal(t, "40", f.item(t, f.locA).Qty)

	res, err = f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: line, Qty: d("60")}})
	require.NoError(t, err)
	assert.Equal(t, core.POReceived, res.Order.Status)
	assert.NotNil(t, res.Order.ReceivedAt)
	requireDecimal(t, "100", f.item(t, f.locA).Qty)

	_, err = f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: line, Qty: d("1")}})
	require.ErrorIs(t, err, core.ErrOverReceipt, "a received order has nothing left to receive")
	var lineErr *core.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, line, lineErr.LineID)
	requireDecimal(t, "100", f.item(t, f.locA).Qty)
	got, err := f.pos.GetPurchaseOrder(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, core.POReceived, got.Status)

	_, err = f.pos.Cancel(f.ctx, po.ID)
	require.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestPurchaseOrder_ReceiptBatchIsAtomic(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	po := f.confirmedPO(t,
		core.PurchaseOrderLineInput{ProductID: f.product, QtyOrdered: d("10"), UnitCost: d("1")},
		core.PurchaseOrderLineInput{ProductID: other, QtyOrdered: d("5"), UnitCost: d("1")},
	)

	_, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{
		{LineID: po.Lines[0].ID, Qty: d("10"), LocationID: &f.locB},
		{LineID: po.Lines[1].ID, Qty: d("3")},
		{LineID: po.Lines[1].ID, Qty: d("3")},
	})
	require.ErrorIs(t, err, core.ErrOverReceipt, "repeated lines count cumulatively")

	requireDecimal(t, "0", f.item(t, f.locB).Qty)
	got, err := f.pos.GetPurchaseOrder(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, core.POConfirmed, got.Status)
	requireDecimal(t, "0", got.Lines[0].QtyReceived)

	_, err = f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: uuid.New(), Qty: d("1")}})
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestPurchaseOrder_ReceiveLotWithExpiry(t *testing.T) {
	f := newFixture(t)
	po := f.confirmedPO(t, core.PurchaseOrderLineInput{ProductID: f.product, QtyOrdered: d("5"), UnitCost: d("4")})
	exp := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)

	res, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{
		{LineID: po.Lines[0].ID, Qty: d("5"), LocationID: &f.locB, LotNumber: "L-77", ExpiresAt: &exp},
	})
	require.NoError(t, err)
	assert.Equal(t, "L-77", res.Moves[0].LotNumber)

	items, err := f.ledger.GetStockSnapshot(f.ctx, f.product, &f.locB)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "L-77", items[0].LotNumber)
	require.NotNil(t, items[0].ExpiresAt)
	assert.True(t, exp.Equal(*items[0].ExpiresAt))
}

func TestPurchaseOrder_CancelAndTransitions(t *testing.T) {
	f := newFixture(t)
	lines := []core.PurchaseOrderLineInput{{ProductID: f.product, QtyOrdered: d("1"), UnitCost: d("1")}}

	draft, err := f.pos.CreatePurchaseOrder(f.ctx, "Acme", lines, "")
	require.NoError(t, err)
	cancelled, err := f.pos.Cancel(f.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, core.POCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = f.pos.Send(f.ctx, draft.ID)
	require.ErrorIs(t, err, core.ErrInvalidTransition)

	po, err := f.pos.CreatePurchaseOrder(f.ctx, "Acme", lines, "")
	require.NoError(t, err)
	_, err = f.pos.Confirm(f.ctx, po.ID)
	require.ErrorIs(t, err, core.ErrInvalidTransition, "draft must be sent first")

	_, err = f.pos.Send(f.ctx, uuid.New())
	require.ErrorIs(t, err, core.ErrNotFound)

	open := core.POCancelled
	list, err := f.pos.ListPurchaseOrders(f.ctx, &open)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, draft.ID, list[0].ID)
}

func TestPurchaseOrder_CreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		supplier string
		lines    []core.PurchaseOrderLineInput
	}{
		{"no supplier", " ", []core.PurchaseOrderLineInput{{ProductID: f.product, QtyOrdered: d("1")}}},
		{"no lines", "Acme", nil},
		{"zero qty", "Acme", []core.PurchaseOrderLineInput{{ProductID: f.product, QtyOrdered: d("0")}}},
		{"negative cost", "Acme", []core.PurchaseOrderLineInput{{ProductID: f.product, QtyOrdered: d("1"), UnitCost: d("-2")}}},
		{"no product", "Acme", []core.PurchaseOrderLineInput{{QtyOrdered: d("1")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pos.CreatePurchaseOrder(f.ctx, tt.supplier, tt.lines, "")
			require.ErrorIs(t, err, core.ErrValidation)
		})
	}
}
