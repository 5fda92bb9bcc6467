package claims

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/claimdesk/claimdesk/internal/platform/db"
)

// recordingTx satisfies pgx.Tx just far enough to capture the SQL the
// repository generates. Only Exec and QueryRow are ever reached.
type recordingTx struct {
	pgx.Tx
	stmts []string
}

func (t *recordingTx) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	t.stmts = append(t.stmts, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *recordingTx) QueryRow(_ context.Context, sql string, _ ...interface{}) pgx.Row {
	t.stmts = append(t.stmts, sql)
	return stampRow{}
}

// stampRow fills time destinations so RETURNING scans succeed.
type stampRow struct{}

func (stampRow) Scan(dest ...interface{}) error {
	for _, d := range dest {
		if ts, ok := d.(*time.Time); ok {
			*ts = time.Now()
		}
	}
	return nil
}

func validClaim() *Claim {
	return &Claim{
		ID:            uuid.New(),
		OrgID:         uuid.New(),
		PatientID:     uuid.New(),
		ProviderID:    uuid.New(),
		Status:        StatusSubmitted,
		DiagnosisCode: "A00",
		ProcedureCode: "01999",
		Amount:        100,
		SubmittedDate: time.Now(),
		ServiceDate:   time.Now(),
	}
}

func recordingRepo(t *testing.T) (context.Context, *recordingTx, Repository) {
	t.Helper()
	tx := &recordingTx{}
	ctx := context.WithValue(db.WithOrg(context.Background(), uuid.New()), db.DBTxKey, pgx.Tx(tx))
	return ctx, tx, &repoPG{}
}

func lastStmt(t *testing.T, tx *recordingTx) string {
	t.Helper()
	if len(tx.stmts) == 0 {
		t.Fatal("no statement captured")
	}
	return tx.stmts[len(tx.stmts)-1]
}

func TestRepoUpdate_TenantPredicateUnaliased(t *testing.T) {
	ctx, tx, repo := recordingRepo(t)

	c := validClaim()
	if err := repo.Update(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stmt := lastStmt(t, tx)
	if !strings.Contains(stmt, "WHERE id = $1 AND org_id = $2") {
		t.Errorf("expected unaliased tenant predicate, got:\n%s", stmt)
	}
	if strings.Contains(stmt, "c.") {
		t.Errorf("UPDATE must not reference the undeclared alias c:\n%s", stmt)
	}
}

func TestRepoDelete_TenantPredicateUnaliased(t *testing.T) {
	ctx, tx, repo := recordingRepo(t)

	if err := repo.Delete(ctx, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stmt := lastStmt(t, tx)
	if !strings.Contains(stmt, "WHERE id = $1 AND org_id = $2") {
		t.Errorf("expected unaliased tenant predicate, got:\n%s", stmt)
	}
	if strings.Contains(stmt, "c.") {
		t.Errorf("DELETE must not reference the undeclared alias c:\n%s", stmt)
	}
}

func TestRepoGetByID_TenantPredicateAliased(t *testing.T) {
	ctx, tx, repo := recordingRepo(t)

	if _, err := repo.GetByID(ctx, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stmt := lastStmt(t, tx)
	if !strings.Contains(stmt, "c.id = $1 AND c.org_id = $2") {
		t.Errorf("expected aliased tenant predicate on the join query, got:\n%s", stmt)
	}
}

func TestRepoCreate_ReturnsTimestamps(t *testing.T) {
	ctx, tx, repo := recordingRepo(t)

	c := validClaim()
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stmt := lastStmt(t, tx)
	if !strings.Contains(stmt, "RETURNING created_at, updated_at") {
		t.Errorf("expected INSERT to return timestamps, got:\n%s", stmt)
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		t.Error("expected created_at/updated_at populated after create")
	}
}
