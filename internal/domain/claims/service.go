package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/domain/patient"
	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/internal/platform/auth"
	"github.com/claimdesk/claimdesk/internal/platform/db"
)

// TxRunner runs fn inside one transaction; repositories called under fn join
// it through the context. Wired to db.WithTx in main, a passthrough in tests.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	claims   Repository
	patients patient.Repository
	inTx     TxRunner
}

func NewService(claims Repository, patients patient.Repository, inTx TxRunner) *Service {
	return &Service{claims: claims, patients: patients, inTx: inTx}
}

// Create stamps the ambient tenant and forces the initial status. The
// referenced patient must resolve inside the tenant; a cross-tenant patient
// id is indistinguishable from a nonexistent one and rejected the same way.
func (s *Service) Create(ctx context.Context, c *Claim) error {
	if err := c.Validate(); err != nil {
		return err
	}

	orgID, ok := db.OrgFromContext(ctx)
	if !ok {
		return apperror.Validationf("organization is required")
	}
	c.OrgID = orgID
	c.Status = StatusSubmitted
	c.ApprovalReason = nil
	c.RejectionReason = nil

	if _, err := s.patients.GetByID(ctx, c.PatientID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Validationf("patient %s not found in organization", c.PatientID)
		}
		return err
	}
	return s.claims.Create(ctx, c)
}

// Get fetches one claim under the object-level policy. A claim the caller
// cannot read is reported as not found.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	user, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperror.ErrForbidden
	}
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanRead(user, c) {
		return nil, apperror.NotFoundf("claim %s", id)
	}
	return c, nil
}

// List returns the caller's visible claims narrowed by filter. The ownership
// scope is applied in SQL before pagination.
func (s *Service) List(ctx context.Context, f *ListFilter, limit, offset int) ([]*Claim, int, error) {
	return s.claims.VisibleList(ctx, f, limit, offset)
}

// Update replaces the claim's editable fields. Status is read-only on this
// path (the restricted status path is UpdateStatus); approved and paid
// claims are frozen entirely.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Claim) (*Claim, error) {
	c, err := s.writable(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Frozen() {
		return nil, apperror.Validationf("cannot modify a claim that is already %s", c.Status)
	}

	in.ID = c.ID
	in.OrgID = c.OrgID
	in.Status = c.Status
	in.ApprovalReason = c.ApprovalReason
	in.RejectionReason = c.RejectionReason
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.PatientID != c.PatientID {
		if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, apperror.Validationf("patient %s not found in organization", in.PatientID)
			}
			return nil, err
		}
	}
	if err := s.claims.Update(ctx, in); err != nil {
		return nil, err
	}
	return s.claims.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.writable(ctx, id); err != nil {
		return err
	}
	return s.claims.Delete(ctx, id)
}

// StatusUpdate is the restricted representation accepted by the single-item
// status path.
type StatusUpdate struct {
	Status          Status  `json:"status"`
	ApprovalReason  *string `json:"approval_reason"`
	RejectionReason *string `json:"rejection_reason"`
}

// UpdateStatus is the single-item status path. Only claims processors may
// use it; admins are not exempt and get a validation error, matching the
// restricted representation's own rule rather than the object policy.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*Claim, error) {
	user, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperror.ErrForbidden
	}
	c, err := s.writable(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != auth.RoleClaimsProcessor {
		return nil, apperror.Validationf("only claims processors may update claim status")
	}
	if c.Status.Frozen() {
		return nil, apperror.Validationf("cannot modify a claim that is already %s", c.Status)
	}
	if !upd.Status.Valid() {
		return nil, apperror.Validationf("unknown status %q", upd.Status)
	}

	c.Status = upd.Status
	if upd.ApprovalReason != nil {
		c.ApprovalReason = upd.ApprovalReason
	}
	if upd.RejectionReason != nil {
		c.RejectionReason = upd.RejectionReason
	}
	if err := s.claims.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// BulkResult is the bulk-update outcome. Partial success is normal: frozen
// rows are skipped with an error entry while the rest commit.
type BulkResult struct {
	UpdatedCount int      `json:"updated_count"`
	Errors       []string `json:"errors"`
}

// BulkUpdateStatus sets status on the caller's visible subset of ids inside
// one transaction with row locks. Ids outside the tenant or ownership scope
// are silently excluded; frozen rows in scope are skipped with a per-row
// error. Only an infrastructure failure rolls the batch back.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status Status) (*BulkResult, error) {
	if len(ids) == 0 || status == "" {
		return nil, apperror.Validationf("claim_ids and status are required")
	}
	if !status.Valid() {
		return nil, apperror.Validationf("unknown status %q", status)
	}

	res := &BulkResult{Errors: []string{}}
	err := s.inTx(ctx, func(ctx context.Context) error {
		rows, err := s.claims.LockVisibleByIDs(ctx, ids)
		if err != nil {
			return err
		}

		var eligible []uuid.UUID
		for _, c := range rows {
			if c.Status.Frozen() {
				res.Errors = append(res.Errors, fmt.Sprintf("Claim %s is already %s", c.ID, c.Status))
				continue
			}
			eligible = append(eligible, c.ID)
		}

		n, err := s.claims.UpdateStatuses(ctx, eligible, status)
		if err != nil {
			return err
		}
		res.UpdatedCount = int(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// writable fetches a claim and applies the write side of the object policy:
// invisible rows read as not found, visible rows the role cannot write are
// forbidden.
func (s *Service) writable(ctx context.Context, id uuid.UUID) (*Claim, error) {
	user, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperror.ErrForbidden
	}
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanRead(user, c) {
		return nil, apperror.NotFoundf("claim %s", id)
	}
	if !CanWrite(user, c) {
		return nil, apperror.Forbiddenf("role %s may not modify claims", user.Role)
	}
	return c, nil
}
