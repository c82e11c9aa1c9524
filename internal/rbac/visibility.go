package rbac

// creatableRoles defines which roles each role may create user accounts for.
// Explicit table; not simply "everything below my rank".
var creatableRoles = map[Role][]Role{
	RoleSuperAdmin: {
		RoleDeveloper,
		RoleRegionalManager,
		RoleBusinessSupport,
		RoleTechLeadPartner,
	},
	RoleDeveloper: {
		RoleRegionalManager,
		RoleBusinessSupport,
		RoleTechLeadPartner,
	},
	RoleRegionalManager: {
		RoleBusinessSupport,
		RoleTechLeadPartner,
	},
	RoleBusinessSupport: {
		RoleTechLeadPartner,
	},
	RoleTechLeadPartner: {},
}

// visibleRoles defines which user roles each role can see in user management.
// Only super_admin sees its own role (including other super_admins); every
// other role sees strictly below itself.
var visibleRoles = map[Role][]Role{
	RoleSuperAdmin: {
		RoleSuperAdmin,
		RoleDeveloper,
		RoleRegionalManager,
		RoleBusinessSupport,
		RoleTechLeadPartner,
	},
	RoleDeveloper: {
		RoleRegionalManager,
		RoleBusinessSupport,
		RoleTechLeadPartner,
	},
	RoleRegionalManager: {
		RoleBusinessSupport,
		RoleTechLeadPartner,
	},
	RoleBusinessSupport: {
		RoleTechLeadPartner,
	},
	RoleTechLeadPartner: {},
}

// CreatableRoles returns the roles the given role may create accounts for.
func CreatableRoles(role Role) []Role {
	src := creatableRoles[role]
	out := make([]Role, len(src))
	copy(out, src)
	return out
}

// CanCreateRole reports whether actorRole may create a user with targetRole.
func CanCreateRole(actorRole, targetRole Role) bool {
	for _, r := range creatableRoles[actorRole] {
		if r == targetRole {
			return true
		}
	}
	return false
}

// VisibleRoles returns the roles visible to the given role in user management.
func VisibleRoles(role Role) []Role {
	src := visibleRoles[role]
	out := make([]Role, len(src))
	copy(out, src)
	return out
}

// CanViewUser reports whether viewerRole may see users with targetRole.
func CanViewUser(viewerRole, targetRole Role) bool {
	for _, r := range visibleRoles[viewerRole] {
		if r == targetRole {
			return true
		}
	}
	return false
}

// CanEditUser reports whether the actor may edit the target user through the
// user-management path. Self-edit is rejected for everyone except super_admin;
// other roles reach their own profile via a separate self-profile path.
func CanEditUser(actorRole, targetRole Role, targetID, actorID string) bool {
	if actorRole == RoleSuperAdmin && targetID == actorID {
		return true
	}
	if targetID == actorID {
		return false
	}
	return CanViewUser(actorRole, targetRole)
}

// CanDeleteUser reports whether the actor may delete the target user.
// Nobody may delete themselves, super_admin included.
func CanDeleteUser(actorRole, targetRole Role, targetID, actorID string) bool {
	if targetID == actorID {
		return false
	}
	return CanViewUser(actorRole, targetRole)
}
