package patientstatus

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/domain/claims"
	"github.com/claimdesk/claimdesk/internal/domain/patient"
	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/internal/platform/db"
	"github.com/claimdesk/claimdesk/internal/platform/jobs"
)

type Service struct {
	statuses    Repository
	patients    patient.Repository
	queue       jobs.Store
	inTx        claims.TxRunner
	maxAttempts int
}

func NewService(statuses Repository, patients patient.Repository, queue jobs.Store, inTx claims.TxRunner, maxAttempts int) *Service {
	return &Service{
		statuses:    statuses,
		patients:    patients,
		queue:       queue,
		inTx:        inTx,
		maxAttempts: maxAttempts,
	}
}

// Create appends the event and enqueues its workflow job in one
// transaction. The job row joins the same transaction, so it becomes
// runnable only once the event commits; a rollback discards both.
func (s *Service) Create(ctx context.Context, ps *PatientStatus) error {
	if !ps.StatusType.Valid() {
		return apperror.Validationf("unknown status_type %q", ps.StatusType)
	}
	if ps.PatientID == uuid.Nil {
		return apperror.Validationf("patient_id is required")
	}
	if ps.OccurredAt.IsZero() {
		ps.OccurredAt = time.Now()
	}
	if ps.Details == nil {
		ps.Details = map[string]interface{}{}
	}

	orgID, ok := db.OrgFromContext(ctx)
	if !ok {
		return apperror.Validationf("organization is required")
	}
	ps.OrgID = orgID

	if _, err := s.patients.GetByID(ctx, ps.PatientID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Validationf("patient %s not found in organization", ps.PatientID)
		}
		return err
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.statuses.Create(ctx, ps); err != nil {
			return err
		}

		kind, ok := jobKindFor(ps.StatusType)
		if !ok {
			return nil
		}
		payload := WorkflowPayload{PatientID: ps.PatientID, OrganizationID: ps.OrgID}
		if ps.StatusType == TypeTreatmentInitiated {
			payload.TreatmentType = treatmentType(ps.Details)
		}
		job, err := jobs.NewJob(kind, payload, s.maxAttempts)
		if err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, job)
	})
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*PatientStatus, int, error) {
	return s.statuses.List(ctx, limit, offset)
}

// History returns the patient's events, newest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*PatientStatus, error) {
	return s.statuses.ListByPatient(ctx, patientID)
}

func treatmentType(details map[string]interface{}) string {
	if v, ok := details["treatment_type"].(string); ok && v != "" {
		return v
	}
	return "N/A"
}
