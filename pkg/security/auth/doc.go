/*
Package auth provides API key authentication and role-based authorization for
Report Keeper.

Every request to the /v1 API carries an API key. The key maps to a Principal
(user, branch, role); handlers read it back with PrincipalFrom and ask a
RoleAuthorizer whether the role holds a Capability.

# Basic Usage

	validator := auth.NewAPIKeyValidator([]*auth.APIKeyInfo{
		{
			Key:     "rk-operator-1234567890",
			UserID:  "ops-1",
			Role:    auth.RoleOperator,
			Enabled: true,
		},
	})

	middleware := auth.NewAPIKeyMiddleware(validator, auth.DefaultSources())
	mux.Handle("/v1/", middleware.Handle(api))

	func handler(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())
		if !auth.NewRoleAuthorizer().Allowed(p, auth.CapabilityReclaim) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

# Roles

  - superadmin: every capability
  - operator: reclaim
  - branch_manager: manage any report of their branch
  - inspector: own reports only

# Key Rotation

APIKeyValidator.Replace swaps the key set atomically. The run command calls
it whenever the configuration file changes on disk.
*/
package auth
