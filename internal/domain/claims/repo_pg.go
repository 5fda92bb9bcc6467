package claims

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimdesk/claimdesk/internal/domain/patient"
	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/internal/platform/auth"
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

const claimCols = `c.id, c.org_id, c.patient_id, c.provider_id, c.assigned_processor_id,
	c.status, c.diagnosis_code, c.procedure_code, c.amount, c.submitted_date, c.service_date,
	c.approval_reason, c.rejection_reason, c.created_at, c.updated_at,
	p.id, p.org_id, p.first_name, p.last_name, p.date_of_birth, p.email, p.phone, p.created_at`

const claimFrom = ` FROM claims c JOIN patients p ON p.id = c.patient_id`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	var pd patient.Patient
	err := row.Scan(
		&c.ID, &c.OrgID, &c.PatientID, &c.ProviderID, &c.AssignedProcessorID,
		&c.Status, &c.DiagnosisCode, &c.ProcedureCode, &c.Amount, &c.SubmittedDate, &c.ServiceDate,
		&c.ApprovalReason, &c.RejectionReason, &c.CreatedAt, &c.UpdatedAt,
		&pd.ID, &pd.OrgID, &pd.FirstName, &pd.LastName, &pd.DateOfBirth, &pd.Email, &pd.Phone, &pd.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.PatientDetails = &pd
	return &c, nil
}

// tenantScope appends the ambient-org predicate. No ambient org means an
// unscoped query; only the workflow jobs run that way. prefix qualifies the
// column for the aliased SELECT joins ("c.") and must be empty for the
// unaliased UPDATE and DELETE statements.
func tenantScope(ctx context.Context, prefix string, conds []string, args []interface{}) ([]string, []interface{}) {
	if orgID, ok := db.OrgFromContext(ctx); ok {
		args = append(args, orgID)
		conds = append(conds, fmt.Sprintf("%sorg_id = $%d", prefix, len(args)))
	}
	return conds, args
}

// ownershipScope appends the acting role's visibility predicate on top of
// the tenant scope. This is the single chokepoint the list and bulk paths
// share: processors see assigned claims, providers their own, patients
// claims whose patient email matches theirs, admins everything in tenant.
// An unknown role sees nothing.
func ownershipScope(ctx context.Context, conds []string, args []interface{}) ([]string, []interface{}) {
	conds, args = tenantScope(ctx, "c.", conds, args)

	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return conds, args
	}
	switch id.Role {
	case auth.RoleAdmin:
	case auth.RoleClaimsProcessor:
		args = append(args, id.UserID)
		conds = append(conds, fmt.Sprintf("c.assigned_processor_id = $%d", len(args)))
	case auth.RoleProvider:
		args = append(args, id.UserID)
		conds = append(conds, fmt.Sprintf("c.provider_id = $%d", len(args)))
	case auth.RolePatient:
		args = append(args, id.Email)
		conds = append(conds, fmt.Sprintf("p.email = $%d", len(args)))
	default:
		conds = append(conds, "FALSE")
	}
	return conds, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO claims (id, org_id, patient_id, provider_id, assigned_processor_id,
			status, diagnosis_code, procedure_code, amount, submitted_date, service_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		c.ID, c.OrgID, c.PatientID, c.ProviderID, c.AssignedProcessorID,
		c.Status, c.DiagnosisCode, c.ProcedureCode, c.Amount, c.SubmittedDate, c.ServiceDate).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.MapError(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	conds, args := tenantScope(ctx, "c.", []string{"c.id = $1"}, []interface{}{id})
	c, err := scanClaim(r.conn(ctx).QueryRow(ctx,
		`SELECT `+claimCols+claimFrom+whereClause(conds), args...))
	if err != nil {
		return nil, db.MapError(err)
	}
	return c, nil
}

func (r *repoPG) Update(ctx context.Context, c *Claim) error {
	conds, args := tenantScope(ctx, "", []string{"id = $1"}, []interface{}{c.ID})
	n := len(args)
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`
		UPDATE claims SET patient_id = $%d, provider_id = $%d, assigned_processor_id = $%d,
			status = $%d, diagnosis_code = $%d, procedure_code = $%d, amount = $%d,
			submitted_date = $%d, service_date = $%d, approval_reason = $%d,
			rejection_reason = $%d, updated_at = NOW()%s`,
		n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11,
		whereClause(conds)),
		append(args, c.PatientID, c.ProviderID, c.AssignedProcessorID,
			c.Status, c.DiagnosisCode, c.ProcedureCode, c.Amount,
			c.SubmittedDate, c.ServiceDate, c.ApprovalReason, c.RejectionReason)...)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	conds, args := tenantScope(ctx, "", []string{"id = $1"}, []interface{}{id})
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM claims`+whereClause(conds), args...)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *repoPG) VisibleList(ctx context.Context, f *ListFilter, limit, offset int) ([]*Claim, int, error) {
	conds, args := ownershipScope(ctx, nil, nil)

	if f.FromDate != nil {
		args = append(args, *f.FromDate)
		conds = append(conds, fmt.Sprintf("c.service_date >= $%d", len(args)))
	}
	if f.ToDate != nil {
		args = append(args, *f.ToDate)
		conds = append(conds, fmt.Sprintf("c.service_date <= $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("c.patient_id = $%d", len(args)))
	}
	if f.ProviderID != nil {
		args = append(args, *f.ProviderID)
		conds = append(conds, fmt.Sprintf("c.provider_id = $%d", len(args)))
	}
	if f.MinAmount != nil {
		args = append(args, *f.MinAmount)
		conds = append(conds, fmt.Sprintf("c.amount >= $%d", len(args)))
	}
	if f.MaxAmount != nil {
		args = append(args, *f.MaxAmount)
		conds = append(conds, fmt.Sprintf("c.amount <= $%d", len(args)))
	}

	where := whereClause(conds)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+claimFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}

	q := fmt.Sprintf(`SELECT %s%s%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		claimCols, claimFrom, where, f.OrderBy(), len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()

	var claims []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, db.MapError(err)
		}
		claims = append(claims, c)
	}
	return claims, total, db.MapError(rows.Err())
}

func (r *repoPG) LockVisibleByIDs(ctx context.Context, ids []uuid.UUID) ([]*Claim, error) {
	conds, args := ownershipScope(ctx, []string{"c.id = ANY($1)"}, []interface{}{ids})

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+claimCols+claimFrom+whereClause(conds)+` ORDER BY c.created_at FOR UPDATE OF c`,
		args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	var claims []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, db.MapError(err)
		}
		claims = append(claims, c)
	}
	return claims, db.MapError(rows.Err())
}

func (r *repoPG) UpdateStatuses(ctx context.Context, ids []uuid.UUID, status Status) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE claims SET status = $1, updated_at = NOW() WHERE id = ANY($2)`,
		status, ids)
	if err != nil {
		return 0, db.MapError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) TransitionForPatient(ctx context.Context, patientID, orgID uuid.UUID, from []Status, to Status, approvalReason *string) (int64, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE claims SET status = $1,
			approval_reason = COALESCE($2, approval_reason),
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM claims
			WHERE patient_id = $3 AND org_id = $4 AND status = ANY($5)
			FOR UPDATE
		)`,
		to, approvalReason, patientID, orgID, states)
	if err != nil {
		return 0, db.MapError(err)
	}
	return tag.RowsAffected(), nil
}
