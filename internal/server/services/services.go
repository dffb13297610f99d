// Package services contains the gateway's business logic: the
// authentication gate, registration and the password-recovery flow. Errors
// returned to callers are *apperr.Error values.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/server/apperr"
)

// ParamDecoder reverses client-side parameter encryption.
// *paramcodec.Codec implements it.
type ParamDecoder interface {
	Decode(encoded, field string) (string, error)
	DecodeSecret(encoded, field string) (cryptox.Secret, error)
}

// dbContext bounds a single database round trip.
func dbContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// userLookupError maps a repository lookup failure.
func userLookupError(login string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return apperr.UserNotFound(login)
	}
	return apperr.Database(err)
}
