package auth

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether role may manage inventory and other users' bookings.
func IsStaff(role string) bool {
	return role == RoleStaff || role == RoleAdmin
}
