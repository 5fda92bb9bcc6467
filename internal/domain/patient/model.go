// Package patient manages patient demographic records. Patients are owned
// by one organization and every read is filtered by the ambient tenant.
package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OrgID       uuid.UUID `db:"org_id" json:"org_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
