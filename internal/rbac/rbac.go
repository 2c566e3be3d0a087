package rbac

type Role string

const (
	RoleViewer  Role = "viewer"
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// rank orders roles by privilege. Unknown roles rank below viewer.
func rank(role Role) int {
	switch role {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleMember:
		return 1
	case RoleViewer:
		return 0
	default:
		return -1
	}
}

// Normalize maps arbitrary role strings from the store onto the closed role
// set. Applied once at the ingestion boundary; everything downstream works
// with Role values only.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMember, RoleManager, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}

// Max returns the higher-privilege of two roles.
func Max(a, b Role) Role {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Effective computes the effective role from a user's global role and their
// membership role for a team. A team can upgrade a user's authority within
// that team but never downgrade it.
func Effective(global, membership Role) Role {
	if global == RoleAdmin {
		return RoleAdmin
	}
	return Max(global, membership)
}

// Access is the capability view handed to UI collaborators for one team
// context.
type Access struct {
	Role    Role
	CanEdit bool
	IsAdmin bool
}

// Membership is the slice of a team membership the resolver needs.
type Membership struct {
	TeamID string
	Role   Role
}

// Resolve computes a user's access for teamID given their global role and
// full membership list. An empty teamID or a missing membership falls back to
// the global role alone.
func Resolve(global Role, teamID string, memberships []Membership) Access {
	effective := global
	if global != RoleAdmin && teamID != "" {
		for _, m := range memberships {
			if m.TeamID == teamID {
				effective = Effective(global, m.Role)
				break
			}
		}
	}
	if global == RoleAdmin {
		effective = RoleAdmin
	}
	return Access{
		Role:    effective,
		CanEdit: effective == RoleManager || effective == RoleAdmin,
		IsAdmin: effective == RoleAdmin,
	}
}
