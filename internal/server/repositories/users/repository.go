package users

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/server/models"
)

// Repository is the user store. TryAdvanceNonce is the nonce ledger: it
// raises the channel's nonce to the given value only if that is strictly
// greater than the stored one, atomically, and reports whether it did.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	TryAdvanceNonce(ctx context.Context, userID int64, channel models.NonceChannel, nonce int64) (bool, error)
	UpdatePassword(ctx context.Context, userID int64, password cryptox.Secret) error
}
