package app

import (
	"github.com/shopspring/decimal"

	"inventory-ledger/internal/core"
)

// StockResult is returned by GetStock.
type StockResult struct {
	Items          []core.StockItem `json:"items"`
	TotalQty       decimal.Decimal  `json:"total_qty"`
	TotalReserved  decimal.Decimal  `json:"total_reserved"`
	TotalAvailable decimal.Decimal  `json:"total_available"`
}

// MoveHistoryResult is one page of moves. NextAfterSeq is zero on the last page.
type MoveHistoryResult struct {
	Moves        []core.StockMove `json:"moves"`
	NextAfterSeq int64            `json:"next_after_seq,omitempty"`
}

// ReconcileResult is returned by Reconcile.
type ReconcileResult struct {
	Consistent    bool               `json:"consistent"`
	Discrepancies []core.Discrepancy `json:"discrepancies"`
}
