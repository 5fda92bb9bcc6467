package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/internal/platform/auth"
	"github.com/claimdesk/claimdesk/internal/platform/db"
)

type mockUserRepo struct {
	items map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{items: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.items {
		if existing.Email == u.Email {
			return apperror.ErrConflict
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.items[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.items[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.items {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var users []*User
	for _, u := range m.items {
		users = append(users, u)
	}
	return users, len(users), nil
}

func TestCreate_StampsAmbientOrg(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo)
	orgID := uuid.New()
	ctx := db.WithOrg(context.Background(), orgID)

	u := &User{Email: "staff@org1.com", Role: auth.RoleClaimsProcessor}
	if err := svc.Create(ctx, u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.OrgID != orgID {
		t.Errorf("expected org %s stamped, got %s", orgID, u.OrgID)
	}
	if !u.Active {
		t.Error("expected new user to be active")
	}
}

func TestCreate_RejectsOrgMismatch(t *testing.T) {
	svc := NewService(newMockUserRepo())
	ctx := db.WithOrg(context.Background(), uuid.New())

	u := &User{Email: "staff@org1.com", Role: auth.RoleProvider, OrgID: uuid.New()}
	err := svc.Create(ctx, u)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreate_RejectsBadInput(t *testing.T) {
	svc := NewService(newMockUserRepo())
	ctx := db.WithOrg(context.Background(), uuid.New())

	tests := []struct {
		name string
		user User
	}{
		{"missing email", User{Role: auth.RoleAdmin}},
		{"malformed email", User{Email: "nope", Role: auth.RoleAdmin}},
		{"unknown role", User{Email: "a@b.com", Role: "superuser"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(ctx, &tt.user); !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_RequiresOrgWithoutAmbientTenant(t *testing.T) {
	svc := NewService(newMockUserRepo())

	u := &User{Email: "a@b.com", Role: auth.RoleAdmin}
	if err := svc.Create(context.Background(), u); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreate_NormalizesEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo)
	ctx := db.WithOrg(context.Background(), uuid.New())

	u := &User{Email: "  Staff@Org1.COM ", Role: auth.RolePatient}
	if err := svc.Create(ctx, u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "staff@org1.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
}
