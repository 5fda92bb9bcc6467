package patientstatus

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the event log. The log is append-only; there is no
// update or delete.
type Repository interface {
	Create(ctx context.Context, ps *PatientStatus) error
	List(ctx context.Context, limit, offset int) ([]*PatientStatus, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientStatus, error)
}
