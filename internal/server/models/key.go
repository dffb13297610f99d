package models

import "time"

// StoredKey is a PEM-encoded RSA private key kept in the keys table.
type StoredKey struct {
	ID         int64
	PrivatePEM []byte
	CreatedAt  time.Time
}
