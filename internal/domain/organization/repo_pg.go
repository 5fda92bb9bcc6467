package organization

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimdesk/claimdesk/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const orgCols = `id, name, active, created_at`

func scanOrg(row pgx.Row) (*Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.Active, &o.CreatedAt)
	return &o, err
}

func (r *repoPG) Create(ctx context.Context, o *Organization) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO organizations (id, name, active)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		o.ID, o.Name, o.Active).
		Scan(&o.CreatedAt)
	return db.MapError(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	o, err := scanOrg(r.conn(ctx).QueryRow(ctx, `SELECT `+orgCols+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err)
	}
	return o, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Organization, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+orgCols+` FROM organizations
		ORDER BY created_at
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, 0, db.MapError(err)
		}
		orgs = append(orgs, o)
	}
	return orgs, total, db.MapError(rows.Err())
}
