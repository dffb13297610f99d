package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores req, replacing whatever request the user had pending.
func (r *PostgresRepository) Upsert(ctx context.Context, req *models.RecoveryRequest) error {
	query :=
		`INSERT INTO password_recovery_requests (user_id, new_password, access_code_hash)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET new_password = EXCLUDED.new_password,
		     access_code_hash = EXCLUDED.access_code_hash,
		     created_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, req.UserID, req.NewPassword, req.AccessCodeHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetForUpdate reads the pending request and, inside a transaction, locks it
// until commit so two apply attempts cannot both consume it.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID int64) (*models.RecoveryRequest, error) {
	query :=
		`SELECT user_id, new_password, access_code_hash, created_at
		 FROM password_recovery_requests
		 WHERE user_id = $1
		 FOR UPDATE
		 `

	req := &models.RecoveryRequest{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&req.UserID, &req.NewPassword, &req.AccessCodeHash, &req.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID int64) error {
	query :=
		`DELETE FROM password_recovery_requests
		 WHERE user_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	deleted, err := dbx.AffectedOne(res)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !deleted {
		return common.ErrorNotFound
	}
	return nil
}
