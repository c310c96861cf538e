package channelsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/memstore"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

type world struct {
	store   *memstore.Store
	ledger  *core.Ledger
	main    uuid.UUID
	outlet  uuid.UUID
	product uuid.UUID
}

// newWorld stocks 10 units in the main warehouse and 5 in an outlet that is then closed.
func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	store := memstore.New(0)
	dir := core.NewLocationDirectory(store)
	ledger := core.NewLedger(store)

	main, err := dir.CreateWarehouse(ctx, core.WarehouseInput{Code: "MAIN", Name: "Main"})
	require.NoError(t, err)
	outlet, err := dir.CreateWarehouse(ctx, core.WarehouseInput{Code: "OUT", Name: "Outlet"})
	require.NoError(t, err)
	mainLoc, err := dir.CreateLocation(ctx, main.ID, core.LocationInput{Code: "A"})
	require.NoError(t, err)
	outLoc, err := dir.CreateLocation(ctx, outlet.ID, core.LocationInput{Code: "A"})
	require.NoError(t, err)

	w := &world{store: store, ledger: ledger, main: mainLoc.ID, outlet: outLoc.ID, product: uuid.New()}
	for loc, qty := range map[uuid.UUID]int64{w.main: 10, w.outlet: 5} {
		_, err := ledger.Adjust(ctx, core.AdjustmentInput{ProductID: w.product, LocationID: loc, Delta: decimal.NewFromInt(qty), UnitCost: decimal.NewFromInt(1)})
		require.NoError(t, err)
	}
	_, err = dir.DeactivateWarehouse(ctx, outlet.ID)
	require.NoError(t, err)
	return w
}

func TestAvailability_SkipsInactiveWarehouses(t *testing.T) {
	w := newWorld(t)
	p := NewPublisher(&captureWriter{}, w.store, zap.NewNop())

	got, err := p.Availability(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, w.product, got[0].ProductID)
	assert.True(t, decimal.NewFromInt(10).Equal(got[0].OnHandQty), "on hand %s", got[0].OnHandQty)
	assert.True(t, decimal.NewFromInt(10).Equal(got[0].AvailableQty))

	unknown := uuid.New()
	got, err = p.Availability(context.Background(), []uuid.UUID{unknown})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, unknown, got[0].ProductID)
	assert.True(t, got[0].AvailableQty.IsZero())
}

func TestPush_WritesOneMessagePerProduct(t *testing.T) {
	w := newWorld(t)
	writer := &captureWriter{}
	p := NewPublisher(writer, w.store, nil)

	sent, err := p.Push(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, w.product.String(), string(writer.msgs[0].Key))

	var body Availability
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &body))
	assert.Equal(t, w.product, body.ProductID)
	assert.True(t, decimal.NewFromInt(10).Equal(body.AvailableQty))

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPush_WriterFailure(t *testing.T) {
	w := newWorld(t)
	boom := errors.New("broker down")
	p := NewPublisher(&captureWriter{err: boom}, w.store, nil)

	_, err := p.Push(context.Background(), nil)
	require.ErrorIs(t, err, boom)
}

func TestPush_NothingToSend(t *testing.T) {
	writer := &captureWriter{}
	p := NewPublisher(writer, memstore.New(0), nil)

	sent, err := p.Push(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sent)
	assert.Empty(t, writer.msgs)
}
