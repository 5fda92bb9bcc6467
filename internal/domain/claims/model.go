// Package claims implements the insurance-claim lifecycle: tenant- and
// ownership-scoped access, status transitions with frozen terminal states,
// and the transactional bulk status update.
package claims

import (
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/domain/patient"
	"github.com/claimdesk/claimdesk/internal/platform/apperror"
)

// Status is the claim lifecycle state. Claims start as submitted; approved
// and paid claims are frozen and reject any further status change.
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusPaid        Status = "paid"
)

// Valid reports whether s is a known claim status.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}

// Frozen reports whether a claim in this status rejects further mutation.
func (s Status) Frozen() bool {
	return s == StatusApproved || s == StatusPaid
}

// Claim is one insurance claim. OrgID is never client-supplied; it is
// stamped from the ambient tenant on create. PatientDetails is populated on
// reads and carries the joined patient row.
type Claim struct {
	ID                  uuid.UUID        `json:"id"`
	OrgID               uuid.UUID        `json:"organization_id"`
	PatientID           uuid.UUID        `json:"patient_id"`
	ProviderID          uuid.UUID        `json:"provider_id"`
	AssignedProcessorID *uuid.UUID       `json:"assigned_processor_id,omitempty"`
	Status              Status           `json:"status"`
	DiagnosisCode       string           `json:"diagnosis_code"`
	ProcedureCode       string           `json:"procedure_code"`
	Amount              float64          `json:"amount"`
	SubmittedDate       time.Time        `json:"submitted_date"`
	ServiceDate         time.Time        `json:"service_date"`
	ApprovalReason      *string          `json:"approval_reason,omitempty"`
	RejectionReason     *string          `json:"rejection_reason,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	PatientDetails      *patient.Patient `json:"patient_details,omitempty"`
}

var (
	diagnosisCodeRe = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9]{1,4})?$`)
	procedureCodeRe = regexp.MustCompile(`^\d{5}$`)
)

const (
	minAmount = 1
	maxAmount = 10_000_000
)

// Validate checks the boundary-validated fields. Status and OrgID are not
// checked here; they are server-controlled.
func (c *Claim) Validate() error {
	if c.PatientID == uuid.Nil {
		return apperror.Validationf("patient_id is required")
	}
	if c.ProviderID == uuid.Nil {
		return apperror.Validationf("provider_id is required")
	}
	if !diagnosisCodeRe.MatchString(c.DiagnosisCode) {
		return apperror.Validationf("diagnosis_code %q is not a valid ICD-10 code", c.DiagnosisCode)
	}
	if !procedureCodeRe.MatchString(c.ProcedureCode) {
		return apperror.Validationf("procedure_code %q is not a valid five-digit CPT code", c.ProcedureCode)
	}
	if c.Amount < minAmount || c.Amount > maxAmount {
		return apperror.Validationf("amount must be between %d and %d", minAmount, maxAmount)
	}
	if cents := c.Amount * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
		return apperror.Validationf("amount allows at most two decimal places")
	}
	if c.SubmittedDate.IsZero() {
		return apperror.Validationf("submitted_date is required")
	}
	if c.ServiceDate.IsZero() {
		return apperror.Validationf("service_date is required")
	}
	return nil
}
