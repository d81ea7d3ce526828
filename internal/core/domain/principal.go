package domain

// Principal types. Only admin principals carry permissions; customers and
// vendors authenticate but are rejected by the authorization engine whenever
// a route declares a requirement.
const (
	TypeAdmin    = "admin"
	TypeCustomer = "customer"
	TypeVendor   = "vendor"
)

// ValidPrincipalType reports whether t names a known principal type.
func ValidPrincipalType(t string) bool {
	switch t {
	case TypeAdmin, TypeCustomer, TypeVendor:
		return true
	}
	return false
}

// Principal is the authenticated actor attached to a request after access
// token verification. Permissions is the snapshot embedded at token issuance;
// the authorization engine additionally reads through the permission cache
// when RoleID is set, so role mutations take effect without re-login.
type Principal struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Type        string   `json:"type"`
	RoleID      string   `json:"role_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// IsAdmin reports whether the principal may hold permissions at all.
func (p Principal) IsAdmin() bool {
	return p.Type == TypeAdmin
}
