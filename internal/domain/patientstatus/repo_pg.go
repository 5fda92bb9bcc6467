package patientstatus

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

const statusCols = `id, org_id, patient_id, status_type, facility_name, details, occurred_at, created_at`

func scanStatus(row pgx.Row) (*PatientStatus, error) {
	var ps PatientStatus
	err := row.Scan(&ps.ID, &ps.OrgID, &ps.PatientID, &ps.StatusType, &ps.FacilityName,
		&ps.Details, &ps.OccurredAt, &ps.CreatedAt)
	return &ps, err
}

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

func (r *repoPG) Create(ctx context.Context, ps *PatientStatus) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_statuses (id, org_id, patient_id, status_type, facility_name, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		ps.ID, ps.OrgID, ps.PatientID, ps.StatusType, ps.FacilityName, ps.Details, ps.OccurredAt).
		Scan(&ps.CreatedAt)
	return db.MapError(err)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*PatientStatus, int, error) {
	where, args := orgFilter(ctx, "", nil)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_statuses`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}

	q := fmt.Sprintf(`SELECT %s FROM patient_statuses%s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`,
		statusCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()

	statuses, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return statuses, total, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientStatus, error) {
	where, args := orgFilter(ctx, " WHERE patient_id = $1", []interface{}{patientID})
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+statusCols+` FROM patient_statuses`+where+` ORDER BY occurred_at DESC`, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*PatientStatus, error) {
	var statuses []*PatientStatus
	for rows.Next() {
		ps, err := scanStatus(rows)
		if err != nil {
			return nil, db.MapError(err)
		}
		statuses = append(statuses, ps)
	}
	return statuses, db.MapError(rows.Err())
}
