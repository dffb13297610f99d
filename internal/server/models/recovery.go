package models

import (
	"time"

	"github.com/dmitrijs2005/authgate/internal/cryptox"
)

// RecoveryRequest is the single pending password change of a user.
type RecoveryRequest struct {
	UserID         int64
	NewPassword    cryptox.Secret
	AccessCodeHash string
	CreatedAt      time.Time
}
