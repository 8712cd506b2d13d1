// Package apperr defines the error taxonomy the services speak.
// Validation errors reject before any mutation; conflict errors mean an
// optimistic write lost and the caller should re-read and retry; budget
// errors are a normal matching outcome; provider errors are retryable
// settlement failures; invariant violations are fatal bugs and halt the
// batch job that found them.
package apperr

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func Validation(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type ConflictError struct {
	Op string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Op }

func Conflict(op string) error { return &ConflictError{Op: op} }

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// BudgetError: the allocation would exceed the campaign's remaining
// balance. The matching engine treats it as "try the next candidate".
type BudgetError struct {
	CampaignID string
	Requested  int64
	Available  int64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("campaign %s: requested %d exceeds available %d", e.CampaignID, e.Requested, e.Available)
}

func IsBudget(err error) bool {
	var b *BudgetError
	return errors.As(err, &b)
}

type ProviderError struct {
	Op        string
	Reference string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (%s): %v", e.Op, e.Reference, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func IsProvider(err error) bool {
	var p *ProviderError
	return errors.As(err, &p)
}

// InvariantViolation means the ledger is in a state the design rules
// out, e.g. a transaction claimed by two live payouts. It must halt the
// job that found it and never be "fixed" by further mutation.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

func Invariant(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

func IsInvariant(err error) bool {
	var i *InvariantViolation
	return errors.As(err, &i)
}
