package auth

import "time"

// Role is the role granted to an API key holder.
type Role string

const (
	// RoleSuperadmin may do everything.
	RoleSuperadmin Role = "superadmin"

	// RoleOperator runs maintenance tasks such as reclamation.
	RoleOperator Role = "operator"

	// RoleBranchManager manages the reports of a branch.
	RoleBranchManager Role = "branch_manager"

	// RoleInspector authors their own reports.
	RoleInspector Role = "inspector"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleOperator, RoleBranchManager, RoleInspector:
		return true
	default:
		return false
	}
}

// Capability is a privileged operation.
type Capability string

const (
	// CapabilityReclaim allows triggering a reclamation run on demand.
	CapabilityReclaim Capability = "reclaim"

	// CapabilityManageAnyReport allows reading, deleting and recovering
	// reports owned by other users.
	CapabilityManageAnyReport Capability = "manage_any_report"
)

// APIKeyInfo represents an API key with metadata
type APIKeyInfo struct {
	Key       string
	UserID    string
	BranchID  string
	Role      Role
	Enabled   bool
	CreatedAt time.Time
}

// Principal returns the identity the key authenticates as.
func (i *APIKeyInfo) Principal() Principal {
	return Principal{UserID: i.UserID, BranchID: i.BranchID, Role: i.Role}
}

// Principal is an authenticated caller.
type Principal struct {
	UserID   string
	BranchID string
	Role     Role
}

// APIKeyStore validates API keys.
type APIKeyStore interface {
	Validate(key string) (*APIKeyInfo, error)
}
