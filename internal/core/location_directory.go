package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrLocationInUse is returned when deleting a location that still holds stock.
var ErrLocationInUse = &ValidationError{Field: "location", Reason: "location still holds stock"}

type WarehouseInput struct {
	Code      string
	Name      string
	Address   string
	IsDefault bool
}

type LocationInput struct {
	Code           string
	Zone           string
	Aisle          string
	Rack           string
	Shelf          string
	Bin            string
	Type           LocationType
	CapacityVolume *decimal.Decimal
	CapacityWeight *decimal.Decimal
}

// LocationDirectory maintains warehouses and their locations. All writes take the
// directory lock so the default flags stay unique.
type LocationDirectory struct {
	store Store
	tx    txRunner
}

func NewLocationDirectory(store Store, opts ...Option) *LocationDirectory {
	s := newSettings(opts)
	return &LocationDirectory{store: store, tx: txRunner{store: store, settings: s}}
}

// ── Warehouses ────────────────────────────────────────────────────────────────

// CreateWarehouse creates a warehouse. The first warehouse becomes the default; creating
// one with IsDefault moves the flag.
func (d *LocationDirectory) CreateWarehouse(ctx context.Context, in WarehouseInput) (*Warehouse, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, invalid("code", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "is required")
	}

	var created *Warehouse
	err := d.tx.run(ctx, "create_warehouse", func(ctx context.Context, tx Tx) error {
		if err := tx.LockWarehouses(ctx); err != nil {
			return err
		}
		existing, err := tx.ListWarehouses(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to list warehouses: %w", err)
		}
		hasDefault := false
		for _, w := range existing {
			if strings.EqualFold(w.Code, code) {
				return invalid("code", "warehouse code %q already exists", code)
			}
			if w.IsDefault && w.IsActive {
				hasDefault = true
			}
		}

		w := &Warehouse{
			ID:        uuid.New(),
			Code:      code,
			Name:      strings.TrimSpace(in.Name),
			Address:   in.Address,
			IsDefault: in.IsDefault || !hasDefault,
			IsActive:  true,
			CreatedAt: d.tx.now(),
		}
		if w.IsDefault {
			if err := clearDefaultWarehouse(ctx, tx, existing); err != nil {
				return err
			}
		}
		if err := tx.SaveWarehouse(ctx, w); err != nil {
			return fmt.Errorf("failed to save warehouse: %w", err)
		}
		created = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.tx.log.Info("warehouse created", zap.String("code", created.Code), zap.Bool("default", created.IsDefault))
	return created, nil
}

// SetDefaultWarehouse moves the default flag to an active warehouse.
func (d *LocationDirectory) SetDefaultWarehouse(ctx context.Context, id uuid.UUID) (*Warehouse, error) {
	var target *Warehouse
	err := d.tx.run(ctx, "set_default_warehouse", func(ctx context.Context, tx Tx) error {
		if err := tx.LockWarehouses(ctx); err != nil {
			return err
		}
		w, err := tx.GetWarehouse(ctx, id)
		if err != nil {
			return err
		}
		if !w.IsActive {
			return invalid("warehouse", "inactive warehouse %s cannot be the default", w.Code)
		}
		if w.IsDefault {
			target = w
			return nil
		}
		existing, err := tx.ListWarehouses(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to list warehouses: %w", err)
		}
		if err := clearDefaultWarehouse(ctx, tx, existing); err != nil {
			return err
		}
		w.IsDefault = true
		if err := tx.SaveWarehouse(ctx, w); err != nil {
			return fmt.Errorf("failed to save warehouse: %w", err)
		}
		target = w
		return nil
	})
	return target, err
}

// DeactivateWarehouse soft-deactivates a warehouse. The default warehouse cannot be
// deactivated; move the default first. A warehouse with reserved stock is refused
// until the holding orders ship or cancel.
func (d *LocationDirectory) DeactivateWarehouse(ctx context.Context, id uuid.UUID) (*Warehouse, error) {
	var out *Warehouse
	err := d.tx.run(ctx, "deactivate_warehouse", func(ctx context.Context, tx Tx) error {
		if err := tx.LockWarehouses(ctx); err != nil {
			return err
		}
		w, err := tx.GetWarehouse(ctx, id)
		if err != nil {
			return err
		}
		if w.IsDefault {
			return invalid("warehouse", "default warehouse %s cannot be deactivated", w.Code)
		}
		locs, err := tx.ListLocations(ctx, w.ID)
		if err != nil {
			return fmt.Errorf("failed to list locations: %w", err)
		}
		for _, l := range locs {
			items, err := tx.StockItems(ctx, StockFilter{LocationID: &l.ID})
			if err != nil {
				return fmt.Errorf("failed to load stock at location: %w", err)
			}
			for _, it := range items {
				if it.ReservedQty.IsPositive() {
					return invalid("warehouse", "warehouse %s holds %s reserved at location %s", w.Code, it.ReservedQty, l.Code)
				}
			}
		}
		w.IsActive = false
		if err := tx.SaveWarehouse(ctx, w); err != nil {
			return fmt.Errorf("failed to save warehouse: %w", err)
		}
		out = w
		return nil
	})
	return out, err
}

func (d *LocationDirectory) GetWarehouse(ctx context.Context, id uuid.UUID) (*Warehouse, error) {
	return d.store.GetWarehouse(ctx, id)
}

func (d *LocationDirectory) ListWarehouses(ctx context.Context, includeInactive bool) ([]Warehouse, error) {
	return d.store.ListWarehouses(ctx, includeInactive)
}

func (d *LocationDirectory) DefaultWarehouse(ctx context.Context) (*Warehouse, error) {
	return defaultWarehouse(ctx, d.store)
}

func clearDefaultWarehouse(ctx context.Context, tx Tx, existing []Warehouse) error {
	for i := range existing {
		if !existing[i].IsDefault {
			continue
		}
		existing[i].IsDefault = false
		if err := tx.SaveWarehouse(ctx, &existing[i]); err != nil {
			return fmt.Errorf("failed to clear default warehouse: %w", err)
		}
	}
	return nil
}

func defaultWarehouse(ctx context.Context, q Querier) (*Warehouse, error) {
	ws, err := q.ListWarehouses(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	for i := range ws {
		if ws[i].IsDefault {
			return &ws[i], nil
		}
	}
	return nil, fmt.Errorf("default warehouse: %w", ErrNotFound)
}

// ── Locations ─────────────────────────────────────────────────────────────────

// CreateLocation adds a location to an active warehouse. The first location of a
// warehouse becomes its default location.
func (d *LocationDirectory) CreateLocation(ctx context.Context, warehouseID uuid.UUID, in LocationInput) (*Location, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, invalid("code", "is required")
	}
	if in.Type == "" {
		in.Type = LocationStorage
	}
	if !in.Type.Valid() {
		return nil, invalid("location_type", "unknown location type %q", in.Type)
	}
	for name, c := range map[string]*decimal.Decimal{"capacity_volume": in.CapacityVolume, "capacity_weight": in.CapacityWeight} {
		if c != nil && c.IsNegative() {
			return nil, invalid(name, "cannot be negative")
		}
	}

	var created *Location
	err := d.tx.run(ctx, "create_location", func(ctx context.Context, tx Tx) error {
		if err := tx.LockWarehouses(ctx); err != nil {
			return err
		}
		w, err := tx.GetWarehouse(ctx, warehouseID)
		if err != nil {
			return err
		}
		if !w.IsActive {
			return invalid("warehouse", "warehouse %s is inactive", w.Code)
		}
		siblings, err := tx.ListLocations(ctx, warehouseID)
		if err != nil {
			return fmt.Errorf("failed to list locations: %w", err)
		}
		for _, l := range siblings {
			if strings.EqualFold(l.Code, code) {
				return invalid("code", "location code %q already exists in warehouse %s", code, w.Code)
			}
		}

		l := &Location{
			ID:             uuid.New(),
			WarehouseID:    warehouseID,
			Code:           code,
			Zone:           in.Zone,
			Aisle:          in.Aisle,
			Rack:           in.Rack,
			Shelf:          in.Shelf,
			Bin:            in.Bin,
			Type:           in.Type,
			CapacityVolume: in.CapacityVolume,
			CapacityWeight: in.CapacityWeight,
			IsDefault:      len(siblings) == 0,
			IsActive:       true,
			CreatedAt:      d.tx.now(),
		}
		if err := tx.SaveLocation(ctx, l); err != nil {
			return fmt.Errorf("failed to save location: %w", err)
		}
		created = l
		return nil
	})
	return created, err
}

// SetDefaultLocation makes an active location the default of its warehouse.
func (d *LocationDirectory) SetDefaultLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	var out *Location
	err := d.tx.run(ctx, "set_default_location", func(ctx context.Context, tx Tx) error {
		if err := tx.LockWarehouses(ctx); err != nil {
			return err
		}
		l, err := tx.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		if !l.IsActive {
			return invalid("location", "inactive location %s cannot be the default", l.Code)
		}
		siblings, err := tx.ListLocations(ctx, l.WarehouseID)
		if err != nil {
			return fmt.Errorf("failed to list locations: %w", err)
		}
		for i := range siblings {
			if siblings[i].IsDefault && siblings[i].ID != l.ID {
				siblings[i].IsDefault = false
				if err := tx.SaveLocation(ctx, &siblings[i]); err != nil {
					return fmt.Errorf("failed to clear default location: %w", err)
				}
			}
		}
		l.IsDefault = true
		if err := tx.SaveLocation(ctx, l); err != nil {
			return fmt.Errorf("failed to save location: %w", err)
		}
		out = l
		return nil
	})
	return out, err
}

// DeleteLocation removes an empty location. It fails with ErrLocationInUse while any
// stock row at the location has qty > 0.
func (d *LocationDirectory) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return d.tx.run(ctx, "delete_location", func(ctx context.Context, tx Tx) error {
		if err := tx.LockWarehouses(ctx); err != nil {
			return err
		}
		l, err := tx.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		items, err := tx.StockItems(ctx, StockFilter{LocationID: &id})
		if err != nil {
			return fmt.Errorf("failed to load stock at location: %w", err)
		}
		for _, it := range items {
			if it.Qty.IsPositive() {
				return fmt.Errorf("location %s: %w", l.Code, ErrLocationInUse)
			}
		}
		if l.IsDefault {
			siblings, err := tx.ListLocations(ctx, l.WarehouseID)
			if err != nil {
				return fmt.Errorf("failed to list locations: %w", err)
			}
			if len(siblings) > 1 {
				return invalid("location", "default location %s cannot be deleted while other locations exist", l.Code)
			}
		}
		if err := tx.DeleteLocation(ctx, id); err != nil {
			return fmt.Errorf("failed to delete location: %w", err)
		}
		return nil
	})
}

func (d *LocationDirectory) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	return d.store.GetLocation(ctx, id)
}

func (d *LocationDirectory) ListLocations(ctx context.Context, warehouseID uuid.UUID) ([]Location, error) {
	return d.store.ListLocations(ctx, warehouseID)
}

// DefaultLocation returns the default location of the default warehouse.
func (d *LocationDirectory) DefaultLocation(ctx context.Context) (*Location, error) {
	return defaultLocation(ctx, d.store)
}

func defaultLocation(ctx context.Context, q Querier) (*Location, error) {
	w, err := defaultWarehouse(ctx, q)
	if err != nil {
		return nil, err
	}
	locs, err := q.ListLocations(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	for i := range locs {
		if locs[i].IsDefault && locs[i].IsActive {
			return &locs[i], nil
		}
	}
	return nil, fmt.Errorf("default location of warehouse %s: %w", w.Code, ErrNotFound)
}

// activeLocation loads a location and checks that it and its warehouse accept moves.
func activeLocation(ctx context.Context, q Querier, id uuid.UUID) (*Location, error) {
	l, err := q.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return nil, invalid("location", "location %s is inactive", l.Code)
	}
	w, err := q.GetWarehouse(ctx, l.WarehouseID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, invalid("location", "warehouse %s of location %s is inactive", w.Code, l.Code)
	}
	return l, nil
}
