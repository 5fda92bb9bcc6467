// Package organization manages the tenant root entity. Every tenant-scoped
// row in the system references exactly one organization.
package organization

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant partitioning root.
type Organization struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
