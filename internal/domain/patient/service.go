package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/internal/platform/db"
)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

// Create stamps the ambient organization onto the new patient. A client
// cannot place a patient into a foreign tenant: a supplied organization
// that differs from the ambient one is rejected outright.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}

	if orgID, ok := db.OrgFromContext(ctx); ok {
		if p.OrgID == uuid.Nil {
			p.OrgID = orgID
		} else if p.OrgID != orgID {
			return apperror.Validationf("organization mismatch")
		}
	}
	if p.OrgID == uuid.Nil {
		return apperror.Validationf("organization is required")
	}

	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func validate(p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return apperror.Validationf("first_name and last_name are required")
	}
	if p.DateOfBirth.IsZero() {
		return apperror.Validationf("date_of_birth is required")
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return apperror.Validationf("valid email is required")
	}
	return nil
}
