package models

import (
	"time"

	"github.com/dmitrijs2005/authgate/internal/cryptox"
)

// User is a row of the users table. Password holds the signing key derived
// from the user's password, never the password itself.
type User struct {
	ID                   int64
	Login                string
	Email                string
	Password             cryptox.Secret
	LastAuthNonce        int64
	LastRecoverPassNonce int64
	CreatedAt            time.Time
}

// NonceChannel selects which monotonic nonce a request consumes.
type NonceChannel int

const (
	NonceAuth NonceChannel = iota + 1
	NonceRecovery
)

func (c NonceChannel) String() string {
	switch c {
	case NonceAuth:
		return "auth"
	case NonceRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}
