package enums

// Role is the actor role carried in access tokens.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleBroker Role = "broker"
)

func (r Role) IsValid() bool { return isOneOf([]Role{RoleAdmin, RoleBroker}, r) }
