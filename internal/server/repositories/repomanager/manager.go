package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authgate/internal/dbx"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/keys"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/recovery"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Recovery(db dbx.DBTX) recovery.Repository
	Keys(db dbx.DBTX) keys.Repository
}
