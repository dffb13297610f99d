// Package common defines shared constants, sentinel errors and small helpers
// used across the gateway packages. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrorUnknownNonceChannel is returned when a nonce channel has no
	// backing column.
	ErrorUnknownNonceChannel = errors.New("unknown nonce channel")
)
