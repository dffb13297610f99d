package keys

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

func (r *PostgresRepository) Latest(ctx context.Context) (*models.StoredKey, error) {
	query :=
		`SELECT id, private_pem, created_at FROM keys
		 ORDER BY id DESC
		 LIMIT 1
		 `

	var (
		k   models.StoredKey
		pem string
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&k.ID, &pem, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	k.PrivatePEM = []byte(pem)
	return &k, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, privatePEM []byte) (int64, error) {
	query :=
		`INSERT INTO keys (private_pem)
		 VALUES ($1)
		 RETURNING id
		 `

	var id int64
	if err := r.db.QueryRowContext(ctx, query, string(privatePEM)).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
