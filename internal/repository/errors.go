// Sentinel errors shared across repositories so higher layers can
// distinguish failure modes without inspecting driver errors.
package repository

import "errors"

// ErrInsufficientQuantity is returned when a quantity decrement would drive
// an item's stock below zero. The conditional update that detects it leaves
// the row untouched and no ledger entry is written.
var ErrInsufficientQuantity = errors.New("insufficient quantity")

// ErrStaleItem is returned when an item update guarded by the quantity the
// caller read matched no row because a concurrent write changed it first.
// Callers re-read and retry.
var ErrStaleItem = errors.New("item changed concurrently")
