// Package seed populates demo tenants: three organizations, one user per
// role in each, a patient record mirroring each patient user, and one claim
// per patient.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/claimdesk/claimdesk/internal/domain/claims"
	"github.com/claimdesk/claimdesk/internal/domain/identity"
	"github.com/claimdesk/claimdesk/internal/domain/organization"
	"github.com/claimdesk/claimdesk/internal/domain/patient"
	"github.com/claimdesk/claimdesk/internal/platform/auth"
	"github.com/claimdesk/claimdesk/internal/platform/db"
)

// Run creates the demo data set. It is not idempotent: running twice against
// the same database fails on the unique user emails.
func Run(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	orgs := organization.NewRepoPG(pool)
	users := identity.NewRepoPG(pool)
	patients := patient.NewRepoPG(pool)
	claimRepo := claims.NewRepoPG(pool)

	for i := 1; i <= 3; i++ {
		org := &organization.Organization{Name: fmt.Sprintf("Organization %d", i), Active: true}
		if err := orgs.Create(ctx, org); err != nil {
			return fmt.Errorf("create organization %d: %w", i, err)
		}
		orgCtx := db.WithOrg(ctx, org.ID)

		byRole := make(map[string]*identity.User)
		for _, role := range []string{auth.RoleAdmin, auth.RoleClaimsProcessor, auth.RoleProvider, auth.RolePatient} {
			u := &identity.User{
				OrgID:     org.ID,
				Email:     fmt.Sprintf("%s@org%d.com", role, i),
				FirstName: fmt.Sprintf("Org %d %s", i, role),
				LastName:  "User",
				Role:      role,
				Active:    true,
			}
			if err := users.Create(orgCtx, u); err != nil {
				return fmt.Errorf("create %s user for organization %d: %w", role, i, err)
			}
			byRole[role] = u
		}

		patientUser := byRole[auth.RolePatient]
		p := &patient.Patient{
			OrgID:       org.ID,
			FirstName:   patientUser.FirstName,
			LastName:    patientUser.LastName,
			DateOfBirth: time.Date(1990+rand.Intn(7), 4, 23, 0, 0, 0, 0, time.UTC),
			Email:       patientUser.Email,
			Phone:       "111-1111",
		}
		if err := patients.Create(orgCtx, p); err != nil {
			return fmt.Errorf("create patient for organization %d: %w", i, err)
		}

		processorID := byRole[auth.RoleClaimsProcessor].ID
		c := &claims.Claim{
			OrgID:               org.ID,
			PatientID:           p.ID,
			ProviderID:          byRole[auth.RoleProvider].ID,
			AssignedProcessorID: &processorID,
			Status:              claims.StatusSubmitted,
			DiagnosisCode:       "A00",
			ProcedureCode:       "01999",
			Amount:              1_000_000,
			SubmittedDate:       time.Now(),
			ServiceDate:         time.Now(),
		}
		if err := claimRepo.Create(orgCtx, c); err != nil {
			return fmt.Errorf("create claim for organization %d: %w", i, err)
		}

		logger.Info().
			Stringer("org_id", org.ID).
			Str("name", org.Name).
			Msg("seeded organization")
	}

	logger.Info().Msg("demo data populated")
	return nil
}
