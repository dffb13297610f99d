// Package recovery stores pending password-recovery requests, at most one
// per user.
package recovery

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, req *models.RecoveryRequest) error
	GetForUpdate(ctx context.Context, userID int64) (*models.RecoveryRequest, error)
	Delete(ctx context.Context, userID int64) error
}
