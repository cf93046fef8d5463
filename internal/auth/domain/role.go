package domain

import "fmt"

// Role is an ordered privilege level. Comparison goes through Satisfies so
// the ordering stays explicit instead of leaking raw integer comparisons
// across the codebase.
type Role int

const (
	RoleViewer Role = iota + 1
	RoleManager
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func (r Role) Valid() bool {
	return r >= RoleViewer && r <= RoleAdmin
}

// Satisfies reports whether r grants at least the privileges of required.
func (r Role) Satisfies(required Role) bool {
	return r >= required
}

func RoleFromString(s string) (Role, error) {
	switch s {
	case "viewer":
		return RoleViewer, nil
	case "manager":
		return RoleManager, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
