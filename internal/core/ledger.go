package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventory-ledger/internal/metrics"
)

// CostScale is the number of decimal places kept on cost_per_unit.
const CostScale = 6

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Ledger applies stock moves. The movement log is the source of truth; StockItem rows
// are its materialized fold and are only written here and by the ReservationManager.
//
// Costing is moving-average: an inbound move recomputes cost_per_unit as the
// quantity-weighted average of the existing stock and the incoming units. Consumption
// leaves cost_per_unit unchanged.
type Ledger struct {
	store Store
	tx    txRunner
}

func NewLedger(store Store, opts ...Option) *Ledger {
	s := newSettings(opts)
	return &Ledger{store: store, tx: txRunner{store: store, settings: s}}
}

// ApplyMove validates and appends one move, updating the source and/or destination
// stock rows in the same transaction.
func (l *Ledger) ApplyMove(ctx context.Context, in StockMoveInput) (*StockMove, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var move *StockMove
	err := l.tx.run(ctx, "apply_move", func(ctx context.Context, tx Tx) error {
		items, err := tx.LockStockItems(ctx, moveKeys(in))
		if err != nil {
			return err
		}
		move, err = l.applyMoveTx(ctx, tx, in, items, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.tx.log.Debug("move applied",
		zap.String("move_id", move.ID.String()),
		zap.String("reason", string(move.Reason)),
		zap.String("qty", move.Qty.String()))
	return move, nil
}

// Adjust books a manual correction. A positive delta is an inbound move, a negative
// delta a consuming move checked against available stock.
func (l *Ledger) Adjust(ctx context.Context, in AdjustmentInput) (*StockMove, error) {
	if in.Delta.IsZero() {
		return nil, invalid("delta", "must not be zero")
	}
	if in.LocationID == uuid.Nil {
		return nil, invalid("location_id", "is required")
	}
	reason := in.Reason
	if reason == "" {
		reason = ReasonAdjustment
	}
	if reason == ReasonPurchase || reason == ReasonSale || reason == ReasonTransfer {
		return nil, invalid("reason", "%s moves are booked by their own workflow", reason)
	}
	mv := StockMoveInput{
		ProductID: in.ProductID,
		LotNumber: in.LotNumber,
		Qty:       in.Delta.Abs(),
		UnitCost:  in.UnitCost,
		Reason:    reason,
		RefTable:  "adjustments",
		Note:      in.Note,
	}
	loc := in.LocationID
	if in.Delta.IsPositive() {
		mv.ToLocationID = &loc
	} else {
		mv.FromLocationID = &loc
	}
	return l.ApplyMove(ctx, mv)
}

// Transfer moves qty of one lot between two locations. The destination is valued at the
// source's current cost.
func (l *Ledger) Transfer(ctx context.Context, productID, from, to uuid.UUID, lot string, qty decimal.Decimal, note string) (*StockMove, error) {
	return l.ApplyMove(ctx, StockMoveInput{
		ProductID:      productID,
		FromLocationID: &from,
		ToLocationID:   &to,
		LotNumber:      lot,
		Qty:            qty,
		Reason:         ReasonTransfer,
		Note:           note,
	})
}

// Recount sets on-hand qty to a counted value by booking the difference as a recount
// move. It returns a nil move when the count matches. A count below the reserved qty
// fails with ErrInsufficientStock.
func (l *Ledger) Recount(ctx context.Context, key StockKey, counted decimal.Decimal, note string) (*StockMove, error) {
	if counted.IsNegative() {
		return nil, invalid("counted_qty", "cannot be negative")
	}
	if key.ProductID == uuid.Nil || key.LocationID == uuid.Nil {
		return nil, invalid("key", "product_id and location_id are required")
	}
	var move *StockMove
	err := l.tx.run(ctx, "recount", func(ctx context.Context, tx Tx) error {
		move = nil
		items, err := tx.LockStockItems(ctx, []StockKey{key})
		if err != nil {
			return err
		}
		item := items[key]
		if counted.LessThan(item.ReservedQty) {
			return &StockError{
				Kind:       ErrInsufficientStock,
				ProductID:  key.ProductID,
				LocationID: key.LocationID,
				LotNumber:  key.LotNumber,
				Requested:  item.ReservedQty,
				Available:  counted,
			}
		}
		diff := counted.Sub(item.Qty)
		if diff.IsZero() {
			return nil
		}
		in := StockMoveInput{
			ProductID: key.ProductID,
			LotNumber: key.LotNumber,
			Qty:       diff.Abs(),
			Reason:    ReasonRecount,
			RefTable:  "recounts",
			Note:      note,
		}
		loc := key.LocationID
		if diff.IsPositive() {
			in.ToLocationID = &loc
			in.UnitCost = item.CostPerUnit
		} else {
			in.FromLocationID = &loc
		}
		move, err = l.applyMoveTx(ctx, tx, in, items, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return move, nil
}

// GetStockSnapshot returns the stock rows of a product, optionally for one location.
func (l *Ledger) GetStockSnapshot(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) ([]StockItem, error) {
	if productID == uuid.Nil {
		return nil, invalid("product_id", "is required")
	}
	items, err := l.store.StockItems(ctx, StockFilter{ProductID: &productID, LocationID: locationID})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock snapshot: %w", err)
	}
	return items, nil
}

// Snapshot returns stock rows matching f. An empty filter returns every row.
func (l *Ledger) Snapshot(ctx context.Context, f StockFilter) ([]StockItem, error) {
	items, err := l.store.StockItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock snapshot: %w", err)
	}
	return items, nil
}

// GetMoveHistory pages through the movement log of a product in Seq order. Pass the
// last Seq of a page as AfterSeq to fetch the next one.
func (l *Ledger) GetMoveHistory(ctx context.Context, f MoveFilter) ([]StockMove, error) {
	if f.ProductID == uuid.Nil {
		return nil, invalid("product_id", "is required")
	}
	if f.AfterSeq < 0 {
		return nil, invalid("after_seq", "cannot be negative")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultHistoryLimit
	case f.Limit > MaxHistoryLimit:
		f.Limit = MaxHistoryLimit
	}
	moves, err := l.store.Moves(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load move history: %w", err)
	}
	return moves, nil
}

// Reconcile replays the movement log of a product and reports every key whose stored
// qty differs from the sum of its signed move deltas.
func (l *Ledger) Reconcile(ctx context.Context, productID uuid.UUID, locationID *uuid.UUID) ([]Discrepancy, error) {
	items, err := l.GetStockSnapshot(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}

	type fold struct {
		qty   decimal.Decimal
		count int
	}
	replay := make(map[StockKey]*fold)
	touch := func(k StockKey, d decimal.Decimal) {
		f, ok := replay[k]
		if !ok {
			f = &fold{}
			replay[k] = f
		}
		f.qty = f.qty.Add(d)
		f.count++
	}

	var after int64
	for {
		page, err := l.store.Moves(ctx, MoveFilter{ProductID: productID, LocationID: locationID, AfterSeq: after, Limit: MaxHistoryLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to load move history: %w", err)
		}
		for _, m := range page {
			for _, k := range moveKeysOf(m) {
				if locationID != nil && k.LocationID != *locationID {
					continue
				}
				touch(k, m.DeltaFor(k))
			}
			after = m.Seq
		}
		if len(page) < MaxHistoryLimit {
			break
		}
	}

	var out []Discrepancy
	seen := make(map[StockKey]bool, len(items))
	for _, it := range items {
		k := it.Key()
		seen[k] = true
		f := replay[k]
		if f == nil {
			f = &fold{}
		}
		if !f.qty.Equal(it.Qty) {
			out = append(out, Discrepancy{Key: k, StoredQty: it.Qty, ReplayQty: f.qty, MoveCount: f.count})
		}
	}
	for k, f := range replay {
		if !seen[k] && !f.qty.IsZero() {
			out = append(out, Discrepancy{Key: k, StoredQty: decimal.Zero, ReplayQty: f.qty, MoveCount: f.count})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

// applyMoveTx applies in against rows already locked by the caller. When reserved is
// true the source is reservation-backed: the availability check is skipped and qty and
// reserved_qty drop together.
func (l *Ledger) applyMoveTx(ctx context.Context, tx Tx, in StockMoveInput, items map[StockKey]*StockItem, reserved bool) (*StockMove, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := l.tx.now()
	unitCost := in.UnitCost
	var touched []*StockItem

	// 1. Source leg
	if in.FromLocationID != nil {
		if _, err := activeLocation(ctx, tx, *in.FromLocationID); err != nil {
			return nil, err
		}
		k := StockKey{ProductID: in.ProductID, LocationID: *in.FromLocationID, LotNumber: in.LotNumber}
		src, ok := items[k]
		if !ok {
			return nil, fmt.Errorf("stock row %s was not locked", k)
		}
		if reserved {
			if src.ReservedQty.LessThan(in.Qty) || src.Qty.LessThan(in.Qty) {
				return nil, &StockError{Kind: ErrInsufficientStock, ProductID: k.ProductID, LocationID: k.LocationID,
					LotNumber: k.LotNumber, Requested: in.Qty, Available: src.ReservedQty}
			}
			src.ReservedQty = src.ReservedQty.Sub(in.Qty)
		} else if src.AvailableQty.LessThan(in.Qty) {
			return nil, &StockError{Kind: ErrInsufficientStock, ProductID: k.ProductID, LocationID: k.LocationID,
				LotNumber: k.LotNumber, Requested: in.Qty, Available: src.AvailableQty}
		}
		src.Qty = src.Qty.Sub(in.Qty)
		src.recompute()
		src.LastMovementDate = &now
		if unitCost.IsZero() {
			unitCost = src.CostPerUnit
		}
		touched = append(touched, src)
	}

	// 2. Destination leg
	if in.ToLocationID != nil {
		if _, err := activeLocation(ctx, tx, *in.ToLocationID); err != nil {
			return nil, err
		}
		k := StockKey{ProductID: in.ProductID, LocationID: *in.ToLocationID, LotNumber: in.LotNumber}
		dst, ok := items[k]
		if !ok {
			return nil, fmt.Errorf("stock row %s was not locked", k)
		}
		dst.CostPerUnit = movingAverage(dst.Qty, dst.CostPerUnit, in.Qty, unitCost)
		dst.Qty = dst.Qty.Add(in.Qty)
		dst.recompute()
		dst.LastMovementDate = &now
		if dst.ExpiresAt == nil && in.ExpiresAt != nil {
			exp := in.ExpiresAt.UTC()
			dst.ExpiresAt = &exp
		}
		touched = append(touched, dst)
	}

	for _, it := range touched {
		if err := it.checkInvariant(); err != nil {
			return nil, err
		}
		if err := tx.SaveStockItem(ctx, it); err != nil {
			return nil, fmt.Errorf("failed to save stock item %s: %w", it.Key(), err)
		}
	}

	// 3. Append
	m := &StockMove{
		ID:             uuid.New(),
		ProductID:      in.ProductID,
		FromLocationID: in.FromLocationID,
		ToLocationID:   in.ToLocationID,
		LotNumber:      in.LotNumber,
		Qty:            in.Qty,
		UnitCost:       unitCost,
		Reason:         in.Reason,
		RefTable:       in.RefTable,
		RefID:          in.RefID,
		Note:           in.Note,
		CreatedAt:      now,
	}
	if err := tx.AppendMove(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to append stock move: %w", err)
	}
	metrics.MovesApplied.WithLabelValues(string(m.Reason)).Inc()
	return m, nil
}

// movingAverage returns (oldQty*oldCost + qty*cost) / (oldQty+qty) rounded to CostScale.
func movingAverage(oldQty, oldCost, qty, cost decimal.Decimal) decimal.Decimal {
	newQty := oldQty.Add(qty)
	if !newQty.IsPositive() || !oldQty.IsPositive() {
		return cost.Round(CostScale)
	}
	return oldQty.Mul(oldCost).Add(qty.Mul(cost)).Div(newQty).Round(CostScale)
}

func moveKeys(in StockMoveInput) []StockKey {
	var keys []StockKey
	if in.FromLocationID != nil {
		keys = append(keys, StockKey{ProductID: in.ProductID, LocationID: *in.FromLocationID, LotNumber: in.LotNumber})
	}
	if in.ToLocationID != nil {
		keys = append(keys, StockKey{ProductID: in.ProductID, LocationID: *in.ToLocationID, LotNumber: in.LotNumber})
	}
	return keys
}

func moveKeysOf(m StockMove) []StockKey {
	return moveKeys(StockMoveInput{ProductID: m.ProductID, FromLocationID: m.FromLocationID, ToLocationID: m.ToLocationID, LotNumber: m.LotNumber})
}

// SortKeys returns the distinct keys in lock order.
func SortKeys(keys []StockKey) []StockKey {
	seen := make(map[StockKey]struct{}, len(keys))
	out := make([]StockKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// derefMoves copies moves out after commit, once stores that number moves on commit
// have filled in Seq.
func derefMoves(ms []*StockMove) []StockMove {
	out := make([]StockMove, 0, len(ms))
	for _, m := range ms {
		out = append(out, *m)
	}
	return out
}
