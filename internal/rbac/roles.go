package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin         = "admin"
	RoleDoctor        = "doctor"
	RoleReceptionist  = "receptionist"
	RoleAccountant    = "accountant"
	RoleAuditor       = "auditor"
	RoleSuperAdmin    = "super_admin"
	RoleSystemService = "system_service" // hidden role for machine-to-machine callers
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleSystemService }

// CanReadUnredactedAudit gates access to raw audit payloads. Everyone else
// sees redacted copies.
func CanReadUnredactedAudit(role string) bool {
	return role == RoleAuditor || role == RoleSuperAdmin
}
