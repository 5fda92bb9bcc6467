package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type contextKey string

const (
	// OrgIDKey carries the ambient organization for the current unit of
	// work (one request or one job run). It lives on the request context,
	// so it dies with the request and can never leak across goroutines
	// the way shared mutable state would.
	OrgIDKey contextKey = "org_id"

	// DBTxKey carries the enclosing transaction so repositories join it
	// instead of issuing statements on the pool.
	DBTxKey contextKey = "db_tx"
)

// WithOrg returns a context whose reads and writes are scoped to the given
// organization.
func WithOrg(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// OrgFromContext returns the ambient organization. ok is false when no
// organization is set; repositories then run unscoped. The unscoped path is
// an intentional escape hatch for internal maintenance jobs and the seed
// command, never for request handling.
func OrgFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OrgIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// TxFromContext returns the enclosing transaction, or nil outside WithTx.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
