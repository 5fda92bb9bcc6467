package patientstatus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/domain/patient"
	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/internal/platform/db"
	"github.com/claimdesk/claimdesk/internal/platform/jobs"
)

type mockStatusRepo struct {
	created []*PatientStatus
}

func (m *mockStatusRepo) Create(_ context.Context, ps *PatientStatus) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	m.created = append(m.created, ps)
	return nil
}

func (m *mockStatusRepo) List(_ context.Context, _, _ int) ([]*PatientStatus, int, error) {
	return m.created, len(m.created), nil
}

func (m *mockStatusRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*PatientStatus, error) {
	var out []*PatientStatus
	for _, ps := range m.created {
		if ps.PatientID == patientID {
			out = append(out, ps)
		}
	}
	return out, nil
}

type mockPatients struct {
	items map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) Create(_ context.Context, _ *patient.Patient) error { return nil }
func (m *mockPatients) Update(_ context.Context, _ *patient.Patient) error { return nil }
func (m *mockPatients) Delete(_ context.Context, _ uuid.UUID) error        { return nil }
func (m *mockPatients) List(_ context.Context, _, _ int) ([]*patient.Patient, int, error) {
	return nil, 0, nil
}

func (m *mockPatients) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	if orgID, scoped := db.OrgFromContext(ctx); scoped && p.OrgID != orgID {
		return nil, apperror.ErrNotFound
	}
	return p, nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func setup() (*Service, *mockStatusRepo, *jobs.MemoryStore, uuid.UUID, uuid.UUID) {
	repo := &mockStatusRepo{}
	queue := jobs.NewMemoryStore()
	orgID := uuid.New()
	p := &patient.Patient{ID: uuid.New(), OrgID: orgID, Email: "pat@test"}
	patients := &mockPatients{items: map[uuid.UUID]*patient.Patient{p.ID: p}}
	svc := NewService(repo, patients, queue, passthroughTx, 3)
	return svc, repo, queue, orgID, p.ID
}

func drainOne(t *testing.T, queue *jobs.MemoryStore) *jobs.Job {
	t.Helper()
	job, err := queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("expected one enqueued job, queue empty")
	}
	if extra, _ := queue.Dequeue(context.Background()); extra != nil {
		t.Fatalf("expected exactly one job, found another: %s", extra.Kind)
	}
	return job
}

func TestCreate_AdmissionEnqueuesOneJob(t *testing.T) {
	svc, repo, queue, orgID, patientID := setup()
	ctx := db.WithOrg(context.Background(), orgID)

	ps := &PatientStatus{PatientID: patientID, StatusType: TypeAdmission}
	if err := svc.Create(ctx, ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one event row, got %d", len(repo.created))
	}
	if ps.OrgID != orgID {
		t.Errorf("org not stamped")
	}

	job := drainOne(t, queue)
	if job.Kind != JobAdmission {
		t.Errorf("job kind = %s, want %s", job.Kind, JobAdmission)
	}
	var payload WorkflowPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.PatientID != patientID || payload.OrganizationID != orgID {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCreate_TreatmentCarriesTreatmentType(t *testing.T) {
	svc, _, queue, orgID, patientID := setup()
	ctx := db.WithOrg(context.Background(), orgID)

	ps := &PatientStatus{
		PatientID:  patientID,
		StatusType: TypeTreatmentInitiated,
		Details:    map[string]interface{}{"treatment_type": "chemo"},
	}
	if err := svc.Create(ctx, ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := drainOne(t, queue)
	var payload WorkflowPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.TreatmentType != "chemo" {
		t.Errorf("treatment_type = %q, want chemo", payload.TreatmentType)
	}
}

func TestCreate_TreatmentTypeDefaultsWhenAbsent(t *testing.T) {
	svc, _, queue, orgID, patientID := setup()
	ctx := db.WithOrg(context.Background(), orgID)

	ps := &PatientStatus{PatientID: patientID, StatusType: TypeTreatmentInitiated}
	if err := svc.Create(ctx, ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := drainOne(t, queue)
	var payload WorkflowPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.TreatmentType != "N/A" {
		t.Errorf("treatment_type = %q, want N/A", payload.TreatmentType)
	}
}

func TestCreate_UnknownStatusTypeRejected(t *testing.T) {
	svc, repo, queue, orgID, patientID := setup()
	ctx := db.WithOrg(context.Background(), orgID)

	ps := &PatientStatus{PatientID: patientID, StatusType: "vacation"}
	if err := svc.Create(ctx, ps); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Errorf("event row created for invalid type")
	}
	if job, _ := queue.Dequeue(ctx); job != nil {
		t.Errorf("job dispatched for invalid type")
	}
}

func TestCreate_CrossTenantPatientRejected(t *testing.T) {
	svc, _, queue, _, patientID := setup()
	otherOrg := db.WithOrg(context.Background(), uuid.New())

	ps := &PatientStatus{PatientID: patientID, StatusType: TypeAdmission}
	if err := svc.Create(otherOrg, ps); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if job, _ := queue.Dequeue(context.Background()); job != nil {
		t.Errorf("job dispatched for cross-tenant patient")
	}
}

func TestCreate_DefaultsOccurredAt(t *testing.T) {
	svc, repo, _, orgID, patientID := setup()
	ctx := db.WithOrg(context.Background(), orgID)

	before := time.Now()
	ps := &PatientStatus{PatientID: patientID, StatusType: TypeDischarge}
	if err := svc.Create(ctx, ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.created[0].OccurredAt.Before(before) {
		t.Errorf("occurred_at not defaulted")
	}
}

func TestJobKindFor(t *testing.T) {
	tests := []struct {
		t    StatusType
		kind string
		ok   bool
	}{
		{TypeAdmission, JobAdmission, true},
		{TypeDischarge, JobDischarge, true},
		{TypeTreatmentInitiated, JobTreatmentInitiated, true},
		{"vacation", "", false},
	}
	for _, tt := range tests {
		kind, ok := jobKindFor(tt.t)
		if kind != tt.kind || ok != tt.ok {
			t.Errorf("jobKindFor(%s) = (%s, %v), want (%s, %v)", tt.t, kind, ok, tt.kind, tt.ok)
		}
	}
}
