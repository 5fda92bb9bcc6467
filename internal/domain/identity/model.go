// Package identity manages user accounts and their static role
// assignments. Authentication itself happens in platform/auth; this package
// is the system of record for who exists in which organization.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// User belongs to exactly one organization. Email is unique across all
// tenants: it is how patient users are matched to their Patient record.
// Role is assigned at creation and never transitions.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Role      string    `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
