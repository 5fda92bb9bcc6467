package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
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

const patientCols = `id, org_id, first_name, last_name, date_of_birth, email, phone, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.OrgID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Email, &p.Phone, &p.CreatedAt)
	return &p, err
}

// orgFilter appends the ambient-tenant predicate. Without an ambient org
// the query runs unscoped; request paths always carry one (set by the
// tenant middleware), the unscoped form exists for maintenance jobs.
func orgFilter(ctx context.Context, where string, args []interface{}) (string, []interface{}) {
	orgID, ok := db.OrgFromContext(ctx)
	if !ok {
		return where, args
	}
	if where == "" {
		where = fmt.Sprintf(" WHERE org_id = $%d", len(args)+1)
	} else {
		where += fmt.Sprintf(" AND org_id = $%d", len(args)+1)
	}
	return where, append(args, orgID)
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, org_id, first_name, last_name, date_of_birth, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		p.ID, p.OrgID, p.FirstName, p.LastName, p.DateOfBirth, p.Email, p.Phone).
		Scan(&p.CreatedAt)
	return db.MapError(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	where, args := orgFilter(ctx, " WHERE id = $1", []interface{}{id})
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients`+where, args...))
	if err != nil {
		return nil, db.MapError(err)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	where, args := orgFilter(ctx, " WHERE id = $1", []interface{}{p.ID})
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`
		UPDATE patients SET first_name = $%d, last_name = $%d, date_of_birth = $%d, email = $%d, phone = $%d%s`,
		len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, where),
		append(args, p.FirstName, p.LastName, p.DateOfBirth, p.Email, p.Phone)...)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	where, args := orgFilter(ctx, " WHERE id = $1", []interface{}{id})
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients`+where, args...)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	where, args := orgFilter(ctx, "", nil)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}

	q := fmt.Sprintf(`SELECT %s FROM patients%s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		patientCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, db.MapError(err)
		}
		patients = append(patients, p)
	}
	return patients, total, db.MapError(rows.Err())
}
