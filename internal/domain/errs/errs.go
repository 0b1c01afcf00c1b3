// Package errs holds the error kinds shared by the ledger, receiving, sales
// and fiscal packages. Callers match them with errors.Is on the sentinels or
// errors.As on the typed values to read the offending identifiers.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrMissingTraceability = errors.New("missing traceability data")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
)

// InsufficientStockError is returned when a negative movement would take a
// lot below zero, or when the lots of an item cannot cover a request.
type InsufficientStockError struct {
	LotID     int64
	ItemID    int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	if e.LotID != 0 {
		return fmt.Sprintf("%s: lot %d has %d, requested %d", ErrInsufficientStock, e.LotID, e.Available, e.Requested)
	}
	return fmt.Sprintf("%s: item %d has %d, requested %d", ErrInsufficientStock, e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// MissingTraceabilityDataError names the 1-based receiving line without a lot
// code or an expiry date.
type MissingTraceabilityDataError struct {
	Line   int
	ItemID int64
	Field  string
}

func (e *MissingTraceabilityDataError) Error() string {
	return fmt.Sprintf("%s: line %d (item %d) has no %s", ErrMissingTraceability, e.Line, e.ItemID, e.Field)
}

func (e *MissingTraceabilityDataError) Unwrap() error { return ErrMissingTraceability }

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v %s", e.Entity, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError rejects malformed input before the store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
