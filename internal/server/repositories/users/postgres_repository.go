package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/cryptox"
	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the user. A login or email that is already taken yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (login, email, password)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Login, user.Email, user.Password).Scan(&user.ID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	query :=
		`SELECT id, login, email, password, last_auth_nonce, last_recover_password_nonce
		 FROM users
		 WHERE login = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, login).Scan(
		&user.ID, &user.Login, &user.Email, &user.Password, &user.LastAuthNonce, &user.LastRecoverPassNonce)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

var nonceQueries = map[models.NonceChannel]string{
	models.NonceAuth: `UPDATE users SET last_auth_nonce = $1
		 WHERE id = $2 AND last_auth_nonce < $1
		 `,
	models.NonceRecovery: `UPDATE users SET last_recover_password_nonce = $1
		 WHERE id = $2 AND last_recover_password_nonce < $1
		 `,
}

// TryAdvanceNonce is a single conditional UPDATE; the row lock taken by
// Postgres serializes concurrent callers, so for equal nonces at most one
// call returns true.
func (r *PostgresRepository) TryAdvanceNonce(ctx context.Context, userID int64, channel models.NonceChannel, nonce int64) (bool, error) {
	query, ok := nonceQueries[channel]
	if !ok {
		return false, fmt.Errorf("%w: %d", common.ErrorUnknownNonceChannel, channel)
	}

	res, err := r.db.ExecContext(ctx, query, nonce, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	advanced, err := dbx.AffectedOne(res)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return advanced, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID int64, password cryptox.Secret) error {
	query :=
		`UPDATE users SET password = $1
		 WHERE id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, password, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	updated, err := dbx.AffectedOne(res)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !updated {
		return common.ErrorNotFound
	}
	return nil
}
