package rbac

import (
	"context"
	"testing"
)

func TestPermissionMatrix(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleSuperAdmin, PermUserManagement, true},
		{RoleSuperAdmin, PermApproveJobs, true},
		{RoleSuperAdmin, PermViewAssignedJobs, false},
		{RoleDeveloper, PermSystemSettings, true},
		{RoleDeveloper, PermUploadDocuments, false},
		{RoleRegionalManager, PermApproveJobs, false},
		{RoleRegionalManager, PermCreateJobs, true},
		{RoleRegionalManager, PermViewRegionalJobs, true},
		{RoleRegionalManager, PermUserManagement, false},
		{RoleBusinessSupport, PermApproveJobs, true},
		{RoleBusinessSupport, PermAssignJobs, true},
		{RoleBusinessSupport, PermUserManagement, false},
		{RoleBusinessSupport, PermAPILogs, false},
		{RoleTechLeadPartner, PermViewAssignedJobs, true},
		{RoleTechLeadPartner, PermUpdateJobStatus, true},
		{RoleTechLeadPartner, PermCreateJobs, false},
		{RoleTechLeadPartner, PermViewPayments, false},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%s, %s)=%v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestHasPermissionUnknownInputs(t *testing.T) {
	if HasPermission("auditor", PermCreateJobs) {
		t.Fatal("unknown role must have no permissions")
	}
	if HasPermission(RoleSuperAdmin, "launch_rockets") {
		t.Fatal("unknown permission must be denied")
	}
	if HasPermission("", "") {
		t.Fatal("empty inputs must be denied")
	}
}

func TestCreationHierarchy(t *testing.T) {
	if got := CreatableRoles(RoleTechLeadPartner); len(got) != 0 {
		t.Fatalf("tech_lead_partner must create nothing, got %v", got)
	}
	got := CreatableRoles(RoleSuperAdmin)
	if len(got) != 4 {
		t.Fatalf("super_admin must create all four other roles, got %v", got)
	}
	for _, r := range got {
		if r == RoleSuperAdmin {
			t.Fatal("super_admin must not create other super_admins")
		}
	}
	if !CanCreateRole(RoleBusinessSupport, RoleTechLeadPartner) {
		t.Fatal("business_support must create tech_lead_partner")
	}
	if CanCreateRole(RoleBusinessSupport, RoleRegionalManager) {
		t.Fatal("business_support must not create regional_manager")
	}
	if CanCreateRole(RoleDeveloper, RoleSuperAdmin) {
		t.Fatal("developer must not create super_admin")
	}
}

func TestVisibilityAsymmetry(t *testing.T) {
	if !CanViewUser(RoleSuperAdmin, RoleSuperAdmin) {
		t.Fatal("super_admin must see other super_admins")
	}
	if CanViewUser(RoleDeveloper, RoleDeveloper) {
		t.Fatal("developer must not see peer developers")
	}
	if CanViewUser(RoleTechLeadPartner, RoleTechLeadPartner) {
		t.Fatal("partners must not see other partners")
	}
	if !CanViewUser(RoleRegionalManager, RoleTechLeadPartner) {
		t.Fatal("regional_manager must see partners")
	}
}

func TestSelfEditException(t *testing.T) {
	// Only super_admin may edit themselves through user management.
	if !CanEditUser(RoleSuperAdmin, RoleSuperAdmin, "u1", "u1") {
		t.Fatal("super_admin self-edit must be allowed")
	}
	if CanEditUser(RoleDeveloper, RoleDeveloper, "u2", "u2") {
		t.Fatal("developer self-edit must be refused on this path")
	}
	if !CanEditUser(RoleDeveloper, RoleTechLeadPartner, "u3", "u2") {
		t.Fatal("developer must edit visible partner")
	}
	// Deletion has no self exception at all.
	if CanDeleteUser(RoleSuperAdmin, RoleSuperAdmin, "u1", "u1") {
		t.Fatal("self-delete must always be refused")
	}
	if !CanDeleteUser(RoleSuperAdmin, RoleDeveloper, "u4", "u1") {
		t.Fatal("super_admin must delete visible developer")
	}
}

func TestRankOrdering(t *testing.T) {
	prev := 0
	for _, r := range AllRoles {
		if Rank(r) <= prev {
			t.Fatalf("ranks must strictly increase, role %s rank %d after %d", r, Rank(r), prev)
		}
		prev = Rank(r)
	}
	if Rank("ops_intern") != 999 {
		t.Fatal("unknown roles must sort last")
	}
}

func TestCanAccessRequiresPrincipal(t *testing.T) {
	ctx := context.Background()
	if CanAccess(ctx, PermCreateJobs) {
		t.Fatal("unauthenticated context must be denied")
	}
	ctx = ContextWithPrincipal(ctx, Principal{UserID: "u1", Name: "Ops", Role: RoleBusinessSupport})
	if !CanAccess(ctx, PermApproveJobs) {
		t.Fatal("business_support principal must approve jobs")
	}
	if CanAccess(ctx, PermAuditLogs) {
		t.Fatal("business_support principal must not read audit logs")
	}
}
