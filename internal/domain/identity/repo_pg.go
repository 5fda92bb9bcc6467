package identity

import (
	"context"
	"fmt"

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

const userCols = `id, org_id, email, first_name, last_name, role, active, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.OrgID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.Active, &u.CreatedAt)
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, org_id, email, first_name, last_name, role, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		u.ID, u.OrgID, u.Email, u.FirstName, u.LastName, u.Role, u.Active).
		Scan(&u.CreatedAt)
	return db.MapError(err)
}

// GetByID is tenant-scoped: with an ambient org the row must belong to it.
func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE id = $1`
	args := []interface{}{id}
	if orgID, ok := db.OrgFromContext(ctx); ok {
		q += ` AND org_id = $2`
		args = append(args, orgID)
	}

	u, err := scanUser(r.conn(ctx).QueryRow(ctx, q, args...))
	if err != nil {
		return nil, db.MapError(err)
	}
	return u, nil
}

// GetByEmail looks up across all tenants; email is globally unique.
func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, db.MapError(err)
	}
	return u, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	where := ``
	args := []interface{}{}
	if orgID, ok := db.OrgFromContext(ctx); ok {
		where = ` WHERE org_id = $1`
		args = append(args, orgID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}

	q := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at LIMIT $%d OFFSET $%d`,
		userCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, db.MapError(err)
		}
		users = append(users, u)
	}
	return users, total, db.MapError(rows.Err())
}
