package models

// Role names recognized by the HTTP surface. A role is the name of a group the
// caller actively belongs to.
const (
	RoleAuthAdmin   = "ROLE_AUTH_ADMIN"
	RoleAuthManager = "ROLE_AUTH_MANAGER"
	RoleAuthStaff   = "ROLE_AUTH_STAFF"
)

// AccessGrant is the live role and permission set of a user, resolved from
// enabled memberships in enabled groups.
type AccessGrant struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasAnyRole reports whether roles and required intersect.
func HasAnyRole(roles []string, required ...string) bool {
	for _, want := range required {
		for _, have := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
