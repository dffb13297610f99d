// Package keys persists the deployment's RSA private key.
package keys

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/server/models"
)

type Repository interface {
	Latest(ctx context.Context) (*models.StoredKey, error)
	Insert(ctx context.Context, privatePEM []byte) (int64, error)
}
