package patientstatus

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/claimdesk/claimdesk/internal/domain/claims"
	"github.com/claimdesk/claimdesk/internal/platform/jobs"
)

// Workflow job kinds, one per event type that dispatches work.
const (
	JobAdmission          = "patient.admission"
	JobDischarge          = "patient.discharge"
	JobTreatmentInitiated = "patient.treatment_initiated"
)

const autoFinalizeReason = "Auto-finalize"

// WorkflowPayload is the job payload. TreatmentType is carried for logging
// only, never for filtering.
type WorkflowPayload struct {
	PatientID      uuid.UUID `json:"patient_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	TreatmentType  string    `json:"treatment_type,omitempty"`
}

// jobKindFor maps an event type to its workflow job kind. An unrecognized
// type dispatches nothing.
func jobKindFor(t StatusType) (string, bool) {
	switch t {
	case TypeAdmission:
		return JobAdmission, true
	case TypeDischarge:
		return JobDischarge, true
	case TypeTreatmentInitiated:
		return JobTreatmentInitiated, true
	}
	return "", false
}

// RegisterWorkflows binds the claim-transition handlers to the runner. Each
// handler runs in its own transaction and re-selects only claims still in
// the triggering status under row locks, so a retried job is a no-op for
// rows an earlier attempt already moved.
func RegisterWorkflows(r *jobs.Runner, claimRepo claims.Repository, inTx claims.TxRunner, logger zerolog.Logger) {
	log := logger.With().Str("component", "workflow").Logger()

	r.Register(JobAdmission, func(ctx context.Context, raw json.RawMessage) error {
		var p WorkflowPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		return inTx(ctx, func(ctx context.Context) error {
			n, err := claimRepo.TransitionForPatient(ctx, p.PatientID, p.OrganizationID,
				[]claims.Status{claims.StatusSubmitted}, claims.StatusUnderReview, nil)
			if err != nil {
				return err
			}
			log.Info().
				Stringer("patient_id", p.PatientID).
				Int64("count", n).
				Msg("admission: claims moved to under_review")
			return nil
		})
	})

	r.Register(JobDischarge, func(ctx context.Context, raw json.RawMessage) error {
		var p WorkflowPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		return inTx(ctx, func(ctx context.Context) error {
			reason := autoFinalizeReason
			n, err := claimRepo.TransitionForPatient(ctx, p.PatientID, p.OrganizationID,
				[]claims.Status{claims.StatusSubmitted, claims.StatusUnderReview},
				claims.StatusApproved, &reason)
			if err != nil {
				return err
			}
			log.Info().
				Stringer("patient_id", p.PatientID).
				Int64("count", n).
				Msg("discharge: claims approved")
			return nil
		})
	})

	r.Register(JobTreatmentInitiated, func(ctx context.Context, raw json.RawMessage) error {
		var p WorkflowPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		return inTx(ctx, func(ctx context.Context) error {
			n, err := claimRepo.TransitionForPatient(ctx, p.PatientID, p.OrganizationID,
				[]claims.Status{claims.StatusSubmitted}, claims.StatusUnderReview, nil)
			if err != nil {
				return err
			}
			log.Info().
				Stringer("patient_id", p.PatientID).
				Str("treatment_type", p.TreatmentType).
				Int64("count", n).
				Msg("treatment initiated: claims moved to under_review")
			return nil
		})
	})
}
