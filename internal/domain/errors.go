package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned by a store when the idempotency key is already taken.
	ErrConflict = errors.New("payment with this idempotency key already exists")
	ErrNotFound = errors.New("payment not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GatewayError means the charge attempt itself failed. No record was written,
// so the caller may retry with the same idempotency key.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
