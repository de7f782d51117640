package domain

// Role is the closed set of caller roles resolved per request.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role grants agent capabilities.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// CanSetStatus reports whether the role may transition ticket status.
func (r Role) CanSetStatus() bool {
	return r.IsStaff()
}

// CanPostInternal reports whether the role may author internal comments.
func (r Role) CanPostInternal() bool {
	return r.IsStaff()
}

// Actor is the resolved (userId, role) pair every operation receives.
type Actor struct {
	ID   string
	Role Role
}
