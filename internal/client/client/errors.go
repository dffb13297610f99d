package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("gateway unavailable")
	ErrNoPublicKey  = errors.New("gateway returned no public key")
	ErrUnexpected   = errors.New("unexpected gateway response")
	ErrMissingLogin = errors.New("login is empty")
)

// Gateway error codes the CLI reacts to.
const (
	CodeUserNotFound    uint32 = 5
	CodeWrongNonce      uint32 = 11
	CodeWrongAccessCode uint32 = 15
	CodeWrongSignature  uint32 = 19
)

// APIError is a decoded error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d (http %d): %s", e.Code, e.Status, e.Message)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code uint32) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == code
}
