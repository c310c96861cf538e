package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-ledger/internal/core"
)

func TestDirectory_SingleDefaultWarehouse(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.wh.IsDefault, "first warehouse becomes the default")

	second, err := f.dir.CreateWarehouse(f.ctx, core.WarehouseInput{Code: "EAST", Name: "East", IsDefault: true})
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	ws, err := f.dir.ListWarehouses(f.ctx, true)
	require.NoError(t, err)
	defaults := 0
	for _, w := range ws {
		if w.IsDefault {
			defaults++
			assert.Equal(t, second.ID, w.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	back, err := f.dir.SetDefaultWarehouse(f.ctx, f.wh.ID)
	require.NoError(t, err)
	assert.True(t, back.IsDefault)
	def, err := f.dir.DefaultWarehouse(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.wh.ID, def.ID)
}

func TestDirectory_WarehouseRules(t *testing.T) {
	f := newFixture(t)

	_, err := f.dir.CreateWarehouse(f.ctx, core.WarehouseInput{Code: "main", Name: "Dup"})
	require.ErrorIs(t, err, core.ErrValidation, "codes are unique ignoring case")
	_, err = f.dir.CreateWarehouse(f.ctx, core.WarehouseInput{Code: "  ", Name: "Blank"})
	require.ErrorIs(t, err, core.ErrValidation)

	_, err = f.dir.DeactivateWarehouse(f.ctx, f.wh.ID)
	require.ErrorIs(t, err, core.ErrValidation, "the default warehouse stays active")

	other, err := f.dir.CreateWarehouse(f.ctx, core.WarehouseInput{Code: "WEST", Name: "West"})
	require.NoError(t, err)
	assert.False(t, other.IsDefault)
	off, err := f.dir.DeactivateWarehouse(f.ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	_, err = f.dir.SetDefaultWarehouse(f.ctx, other.ID)
	require.ErrorIs(t, err, core.ErrValidation)
	_, err = f.dir.CreateLocation(f.ctx, other.ID, core.LocationInput{Code: "W-01"})
	require.ErrorIs(t, err, core.ErrValidation)

	active, err := f.dir.ListWarehouses(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestDirectory_DeactivateRefusedWhileStockIsReserved(t *testing.T) {
	f := newFixture(t)
	west, err := f.dir.CreateWarehouse(f.ctx, core.WarehouseInput{Code: "WEST", Name: "West"})
	require.NoError(t, err)
	loc, err := f.dir.CreateLocation(f.ctx, west.ID, core.LocationInput{Code: "W-01"})
	require.NoError(t, err)
	f.stockIn(t, loc.ID, "4", "1")

	so, err := f.sos.CreateSalesOrder(f.ctx, "Jane Doe", "web", []core.SalesOrderLineInput{
		{ProductID: f.product, LocationID: loc.ID, QtyOrdered: d("2")},
	}, "")
	require.NoError(t, err)
	_, err = f.sos.Confirm(f.ctx, so.ID)
	require.NoError(t, err)

	_, err = f.dir.DeactivateWarehouse(f.ctx, west.ID)
	require.ErrorIs(t, err, core.ErrValidation)
	got, err := f.dir.GetWarehouse(f.ctx, west.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, err = f.sos.StartProcessing(f.ctx, so.ID)
	require.NoError(t, err)
	_, err = f.sos.Pick(f.ctx, so.ID, []core.LineQty{{LineID: so.Lines[0].ID, Qty: d("2")}})
	require.NoError(t, err)
	_, err = f.sos.Pack(f.ctx, so.ID)
	require.NoError(t, err)
	res, err := f.sos.Ship(f.ctx, so.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, core.SOShipped, res.Order.Status)

	off, err := f.dir.DeactivateWarehouse(f.ctx, west.ID)
	require.NoError(t, err, "unreserved stock does not block deactivation")
	assert.False(t, off.IsActive)
}

func TestDirectory_DefaultLocation(t *testing.T) {
	f := newFixture(t)

	def, err := f.dir.DefaultLocation(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.locA, def.ID)

	moved, err := f.dir.SetDefaultLocation(f.ctx, f.locB)
	require.NoError(t, err)
	assert.True(t, moved.IsDefault)

	locs, err := f.dir.ListLocations(f.ctx, f.wh.ID)
	require.NoError(t, err)
	for _, l := range locs {
		assert.Equal(t, l.ID == f.locB, l.IsDefault, "location %s", l.Code)
		assert.Equal(t, core.LocationStorage, l.Type)
	}
}

func TestDirectory_LocationValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.dir.CreateLocation(f.ctx, f.wh.ID, core.LocationInput{Code: "a-01"})
	require.ErrorIs(t, err, core.ErrValidation)
	_, err = f.dir.CreateLocation(f.ctx, f.wh.ID, core.LocationInput{Code: "C-01", Type: "freezer"})
	require.ErrorIs(t, err, core.ErrValidation)
	neg := d("-1")
	_, err = f.dir.CreateLocation(f.ctx, f.wh.ID, core.LocationInput{Code: "C-01", CapacityWeight: &neg})
	require.ErrorIs(t, err, core.ErrValidation)

	dock, err := f.dir.CreateLocation(f.ctx, f.wh.ID, core.LocationInput{Code: "DOCK", Type: core.LocationReceiving, Zone: "Z1"})
	require.NoError(t, err)
	assert.Equal(t, core.LocationReceiving, dock.Type)
	assert.False(t, dock.IsDefault)
}

func TestDirectory_DeleteLocation(t *testing.T) {
	f := newFixture(t)
	f.stockIn(t, f.locB, "2", "1")

	err := f.dir.DeleteLocation(f.ctx, f.locB)
	require.ErrorIs(t, err, core.ErrLocationInUse)
	require.ErrorIs(t, err, core.ErrValidation)

	_, err = f.ledger.Adjust(f.ctx, core.AdjustmentInput{ProductID: f.product, LocationID: f.locB, Delta: d("-2")})
	require.NoError(t, err)
	require.NoError(t, f.dir.DeleteLocation(f.ctx, f.locB))

	_, err = f.dir.GetLocation(f.ctx, f.locB)
	require.ErrorIs(t, err, core.ErrNotFound)

	err = f.dir.DeleteLocation(f.ctx, f.locB)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDirectory_DefaultLocationNeedsToBeLast(t *testing.T) {
	f := newFixture(t)
	err := f.dir.DeleteLocation(f.ctx, f.locA)
	require.ErrorIs(t, err, core.ErrValidation)
	assert.NotErrorIs(t, err, core.ErrLocationInUse)
}
