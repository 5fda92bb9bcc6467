package claims

import (
	"github.com/claimdesk/claimdesk/internal/platform/auth"
)

// Object-level access is a per-role predicate table, evaluated against one
// claim and the acting identity. Listing applies the same ownership rule in
// SQL before pagination (see repo_pg), so a claim a caller cannot read never
// appears in any response.
//
// A claim outside the caller's read scope is reported as not found, never
// forbidden, so existence does not leak across ownership boundaries. A write
// the caller's role bars entirely (provider, patient) is forbidden even on
// claims they can read.
type policyFn func(id auth.Identity, c *Claim) bool

var readPolicy = map[string]policyFn{
	auth.RoleAdmin:           func(auth.Identity, *Claim) bool { return true },
	auth.RoleClaimsProcessor: assignedToUser,
	auth.RoleProvider: func(id auth.Identity, c *Claim) bool {
		return c.ProviderID == id.UserID
	},
	auth.RolePatient: func(id auth.Identity, c *Claim) bool {
		return c.PatientDetails != nil && c.PatientDetails.Email == id.Email
	},
}

var writePolicy = map[string]policyFn{
	auth.RoleAdmin:           func(auth.Identity, *Claim) bool { return true },
	auth.RoleClaimsProcessor: assignedToUser,
}

func assignedToUser(id auth.Identity, c *Claim) bool {
	return c.AssignedProcessorID != nil && *c.AssignedProcessorID == id.UserID
}

// CanRead reports whether the identity may see this claim. An unknown role
// sees nothing.
func CanRead(id auth.Identity, c *Claim) bool {
	fn, ok := readPolicy[id.Role]
	return ok && fn(id, c)
}

// CanWrite reports whether the identity may modify this claim. Providers and
// patients are read-only regardless of ownership.
func CanWrite(id auth.Identity, c *Claim) bool {
	fn, ok := writePolicy[id.Role]
	return ok && fn(id, c)
}
