package organization

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
)

type Service struct {
	orgs Repository
}

func NewService(orgs Repository) *Service {
	return &Service{orgs: orgs}
}

func (s *Service) Create(ctx context.Context, o *Organization) error {
	if strings.TrimSpace(o.Name) == "" {
		return apperror.Validationf("name is required")
	}
	o.Active = true
	return s.orgs.Create(ctx, o)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Organization, int, error) {
	return s.orgs.List(ctx, limit, offset)
}
