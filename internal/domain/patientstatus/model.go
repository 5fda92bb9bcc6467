// Package patientstatus is the append-only patient event log. Creating an
// event enqueues at most one workflow job, committed atomically with the
// event row, that transitions the patient's claims.
package patientstatus

import (
	"time"

	"github.com/google/uuid"
)

// StatusType is the kind of patient event.
type StatusType string

const (
	TypeAdmission          StatusType = "admission"
	TypeDischarge          StatusType = "discharge"
	TypeTreatmentInitiated StatusType = "treatment_initiated"
)

// Valid reports whether t is a known event type.
func (t StatusType) Valid() bool {
	switch t {
	case TypeAdmission, TypeDischarge, TypeTreatmentInitiated:
		return true
	}
	return false
}

// PatientStatus is one event. Details is an open key-value bag; the only key
// the system itself reads is treatment_type, and only for logging.
type PatientStatus struct {
	ID           uuid.UUID              `json:"id"`
	OrgID        uuid.UUID              `json:"organization_id"`
	PatientID    uuid.UUID              `json:"patient_id"`
	StatusType   StatusType             `json:"status_type"`
	FacilityName *string                `json:"facility_name,omitempty"`
	Details      map[string]interface{} `json:"details"`
	OccurredAt   time.Time              `json:"occurred_at"`
	CreatedAt    time.Time              `json:"created_at"`
}
