package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOverReceipt         = errors.New("over receipt")
	ErrOverConsumption     = errors.New("over consumption")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrContention          = errors.New("contention")
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
)

// StockError describes a quantity failure for one stock key. LineID is set when the
// failure belongs to an order line.
type StockError struct {
	Kind       error
	ProductID  uuid.UUID
	LocationID uuid.UUID
	LotNumber  string
	LineID     *uuid.UUID
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *StockError) Error() string {
	msg := fmt.Sprintf("%s: product %s at location %s", e.Kind, e.ProductID, e.LocationID)
	if e.LotNumber != "" {
		msg += fmt.Sprintf(" lot %s", e.LotNumber)
	}
	if e.LineID != nil {
		msg += fmt.Sprintf(" (line %s)", *e.LineID)
	}
	return msg + fmt.Sprintf(": requested %s, available %s", e.Requested.String(), e.Available.String())
}

func (e *StockError) Unwrap() error { return e.Kind }

// TransitionError reports a status machine violation.
type TransitionError struct {
	Entity string
	ID     uuid.UUID
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func notFound(entity string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// LineError reports an order-line quantity failure (OverReceipt, OverConsumption).
type LineError struct {
	Kind      error
	OrderID   uuid.UUID
	LineID    uuid.UUID
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s: order %s line %s: requested %s, remaining %s",
		e.Kind, e.OrderID, e.LineID, e.Requested.String(), e.Remaining.String())
}

func (e *LineError) Unwrap() error { return e.Kind }
