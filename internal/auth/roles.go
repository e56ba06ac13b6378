package auth

// Admin realm roles.
const (
	// RoleViewer may read audits.
	RoleViewer = "viewer"
	// RoleSupport may also enrol players.
	RoleSupport = "support"
	// RoleAdmin may also post Fuel Points corrections.
	RoleAdmin = "admin"
)

// AuditRoles returns the roles allowed to replay a player's ledger.
func AuditRoles() []string {
	return []string{RoleViewer, RoleSupport, RoleAdmin}
}

// EnrollRoles returns the roles allowed to create players.
func EnrollRoles() []string {
	return []string{RoleSupport, RoleAdmin}
}

// CorrectionRoles returns the roles allowed to adjust Fuel Points.
// Corrections are the only writes that bypass the completion windows.
func CorrectionRoles() []string {
	return []string{RoleAdmin}
}

// ValidRole reports whether role names an admin realm role.
func ValidRole(role string) bool {
	for _, r := range AuditRoles() {
		if r == role {
			return true
		}
	}
	return false
}
