package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStockValue = errors.New("physical stock must be non-negative")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnknownProduct    = errors.New("product is not tracked")
)

var (
	ErrIdempotencyKeyInFlight = errors.New("idempotency key is being processed")
	ErrSyncInProgress         = errors.New("a sync cycle is already running")
)

// InsufficientStockError reports a reservation that cannot be admitted
// without driving available stock negative.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// SyncError wraps a transient failure talking to the remote inventory
// service. Local ledger state is untouched when one is returned.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("inventory sync %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
