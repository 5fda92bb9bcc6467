package patientstatus

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

// recordingTx satisfies pgx.Tx just far enough to capture generated SQL.
type recordingTx struct {
	pgx.Tx
	stmts []string
}

func (t *recordingTx) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	t.stmts = append(t.stmts, sql)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *recordingTx) QueryRow(_ context.Context, sql string, _ ...interface{}) pgx.Row {
	t.stmts = append(t.stmts, sql)
	return stampRow{}
}

type stampRow struct{}

func (stampRow) Scan(dest ...interface{}) error {
	for _, d := range dest {
		if ts, ok := d.(*time.Time); ok {
			*ts = time.Now()
		}
	}
	return nil
}

func TestRepoCreate_ReturnsCreatedAt(t *testing.T) {
	tx := &recordingTx{}
	ctx := context.WithValue(context.Background(), db.DBTxKey, pgx.Tx(tx))
	repo := &repoPG{}

	ps := &PatientStatus{
		ID:         uuid.New(),
		OrgID:      uuid.New(),
		PatientID:  uuid.New(),
		StatusType: TypeAdmission,
		Details:    map[string]interface{}{},
		OccurredAt: time.Now(),
	}
	if err := repo.Create(ctx, ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tx.stmts) == 0 {
		t.Fatal("no statement captured")
	}
	if !strings.Contains(tx.stmts[0], "RETURNING created_at") {
		t.Errorf("expected INSERT to return created_at, got:\n%s", tx.stmts[0])
	}
	if ps.CreatedAt.IsZero() {
		t.Error("expected created_at populated after create")
	}
}
