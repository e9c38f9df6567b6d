package rbac

type Role string
type Action string

const (
	RoleGuest  Role = "guest"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	ActionView     Action = "view"
	ActionEdit     Action = "edit"
	ActionRename   Action = "rename"
	ActionSettings Action = "settings"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleMember:
		return action == ActionView || action == ActionEdit
	case RoleGuest:
		return action == ActionView
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleGuest, RoleMember, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}
