package claims

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the claim persistence contract. GetByID is tenant-scoped
// only; callers apply the object-level policy on the returned row.
// VisibleList and LockVisibleByIDs additionally apply the acting identity's
// ownership scope, so rows outside it are never returned.
type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	Update(ctx context.Context, c *Claim) error
	Delete(ctx context.Context, id uuid.UUID) error

	// VisibleList returns the caller's visible claims narrowed by filter,
	// plus the pre-pagination total.
	VisibleList(ctx context.Context, f *ListFilter, limit, offset int) ([]*Claim, int, error)

	// LockVisibleByIDs resolves the caller's visible claims intersected
	// with ids and locks the matched rows for the enclosing transaction.
	// Ids outside the visible set are silently absent from the result.
	LockVisibleByIDs(ctx context.Context, ids []uuid.UUID) ([]*Claim, error)

	// UpdateStatuses sets status on the given rows. Callers lock first.
	UpdateStatuses(ctx context.Context, ids []uuid.UUID, status Status) (int64, error)

	// TransitionForPatient moves every claim for patient+org currently in
	// one of the from statuses to the target status, locking the matched
	// rows. Used by the workflow jobs; runs unscoped (no ambient identity).
	TransitionForPatient(ctx context.Context, patientID, orgID uuid.UUID, from []Status, to Status, approvalReason *string) (int64, error)
}
