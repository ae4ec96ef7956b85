package auth

// RoleAuthorizer grants capabilities by role.
type RoleAuthorizer struct {
	grants map[Role]map[Capability]bool
}

// NewRoleAuthorizer returns the default role/capability mapping:
// superadmin has every capability, operator may reclaim, branch managers may
// manage any report in their branch.
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{
		grants: map[Role]map[Capability]bool{
			RoleSuperadmin: {
				CapabilityReclaim:         true,
				CapabilityManageAnyReport: true,
			},
			RoleOperator: {
				CapabilityReclaim: true,
			},
			RoleBranchManager: {
				CapabilityManageAnyReport: true,
			},
		},
	}
}

// Allowed reports whether p holds capability c.
func (a *RoleAuthorizer) Allowed(p Principal, c Capability) bool {
	return a.grants[p.Role][c]
}
