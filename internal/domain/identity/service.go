package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/internal/platform/auth"
	"github.com/claimdesk/claimdesk/internal/platform/db"
)

type Service struct {
	users Repository
}

func NewService(users Repository) *Service {
	return &Service{users: users}
}

// Create validates and persists a new user. The owning organization comes
// from the ambient tenant when the caller did not set one; a client-supplied
// organization that disagrees with the ambient tenant is rejected.
func (s *Service) Create(ctx context.Context, u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return apperror.Validationf("valid email is required")
	}
	if !auth.ValidRole(u.Role) {
		return apperror.Validationf("unknown role %q", u.Role)
	}

	if orgID, ok := db.OrgFromContext(ctx); ok {
		if u.OrgID == uuid.Nil {
			u.OrgID = orgID
		} else if u.OrgID != orgID {
			return apperror.Validationf("organization mismatch")
		}
	}
	if u.OrgID == uuid.Nil {
		return apperror.Validationf("organization is required")
	}

	u.Active = true
	return s.users.Create(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, strings.ToLower(email))
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}
