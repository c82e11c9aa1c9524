package directory

import (
	"context"
	"errors"
	"testing"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/rbac"
)

func newTestService() (*Service, *audit.Log) {
	trail := audit.NewLog(audit.NewMemoryStore())
	return NewService(NewMemoryStore(), trail), trail
}

func ctxAs(id string, role rbac.Role) context.Context {
	return rbac.ContextWithPrincipal(context.Background(), rbac.Principal{
		UserID: id, Name: "Actor " + id, Role: role,
	})
}

func TestEnsureBootstrapIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.EnsureBootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	if err := svc.EnsureBootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	admin, err := svc.Get(ctx, BootstrapUserID)
	if err != nil {
		t.Fatalf("bootstrap admin missing: %v", err)
	}
	if admin.Role != rbac.RoleSuperAdmin || admin.Username != BootstrapUsername {
		t.Fatalf("unexpected bootstrap user: %+v", admin)
	}

	users, _ := svc.store.List(ctx)
	admins := 0
	for _, u := range users {
		if u.Role == rbac.RoleSuperAdmin {
			admins++
		}
	}
	if admins != 1 {
		t.Fatalf("expected exactly one super_admin, got %d", admins)
	}

	if _, err := svc.Authenticate(ctx, BootstrapUsername, BootstrapPassword); err != nil {
		t.Fatalf("default credentials must authenticate: %v", err)
	}
}

func TestCreateEnforcesHierarchyAndUniqueness(t *testing.T) {
	svc, _ := newTestService()
	adminCtx := ctxAs("USER-ADMIN-001", rbac.RoleSuperAdmin)

	params := CreateUserParams{
		Username: "kasun",
		Name:     "Kasun Perera",
		Email:    "kasun@slt.lk",
		Password: "secret1",
		Role:     rbac.RoleTechLeadPartner,
		Region:   "Western Province",
	}
	created, err := svc.Create(adminCtx, params)
	if err != nil {
		t.Fatal(err)
	}
	if created.CreatedBy != "USER-ADMIN-001" || created.Region != "Western Province" {
		t.Fatalf("audit fields not set: %+v", created)
	}

	// Duplicate username must be rejected and leave exactly one such user.
	params.Email = "other@slt.lk"
	if _, err := svc.Create(adminCtx, params); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	users, _ := svc.store.List(context.Background())
	count := 0
	for _, u := range users {
		if u.Username == "kasun" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one kasun, got %d", count)
	}

	// Partner may create nobody.
	partnerCtx := ctxAs(created.ID, rbac.RoleTechLeadPartner)
	if _, err := svc.Create(partnerCtx, CreateUserParams{
		Username: "nimal", Name: "Nimal", Email: "nimal@slt.lk",
		Password: "x1", Role: rbac.RoleTechLeadPartner, Region: "Central Province",
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// business_support cannot create regional_manager.
	bsCtx := ctxAs("u-bs", rbac.RoleBusinessSupport)
	if _, err := svc.Create(bsCtx, CreateUserParams{
		Username: "mgr", Name: "Mgr", Email: "mgr@slt.lk",
		Password: "x1", Role: rbac.RoleRegionalManager, Region: "Uva Province",
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCreateRequiresRegionForRegionalRoles(t *testing.T) {
	svc, _ := newTestService()
	adminCtx := ctxAs("USER-ADMIN-001", rbac.RoleSuperAdmin)
	_, err := svc.Create(adminCtx, CreateUserParams{
		Username: "mgr", Name: "Mgr", Email: "mgr@slt.lk",
		Password: "x1", Role: rbac.RoleRegionalManager,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing region, got %v", err)
	}
	// Developer accounts carry no region.
	if _, err := svc.Create(adminCtx, CreateUserParams{
		Username: "dev", Name: "Dev", Email: "dev@slt.lk",
		Password: "x1", Role: rbac.RoleDeveloper,
	}); err != nil {
		t.Fatalf("developer without region must be accepted: %v", err)
	}
}

func TestAccessDeniedIsAudited(t *testing.T) {
	svc, trail := newTestService()
	partnerCtx := ctxAs("u-p", rbac.RoleTechLeadPartner)
	_, _ = svc.Create(partnerCtx, CreateUserParams{
		Username: "x", Name: "X", Email: "x@slt.lk", Password: "p1",
		Role: rbac.RoleTechLeadPartner, Region: "Western Province",
	})
	denied, err := trail.ByType(audit.TypeAccessDenied)
	if err != nil {
		t.Fatal(err)
	}
	if len(denied) != 1 || denied[0].Details["resource"] != "user_management" {
		t.Fatalf("expected one access_denied entry naming the resource, got %+v", denied)
	}
}

func TestListVisibleFiltersAndSorts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureBootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	adminCtx := ctxAs(BootstrapUserID, rbac.RoleSuperAdmin)
	seed := []CreateUserParams{
		{Username: "dev1", Name: "Dev One", Email: "d1@slt.lk", Password: "p1", Role: rbac.RoleDeveloper},
		{Username: "mgr1", Name: "Mgr One", Email: "m1@slt.lk", Password: "p1", Role: rbac.RoleRegionalManager, Region: "Western Province"},
		{Username: "bs1", Name: "Support One", Email: "b1@slt.lk", Password: "p1", Role: rbac.RoleBusinessSupport, Region: "Western Province"},
		{Username: "tlp1", Name: "Partner One", Email: "t1@slt.lk", Password: "p1", Role: rbac.RoleTechLeadPartner, Region: "Central Province"},
	}
	for _, p := range seed {
		if _, err := svc.Create(adminCtx, p); err != nil {
			t.Fatalf("seed %s: %v", p.Username, err)
		}
	}

	all, err := svc.ListVisible(adminCtx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("super_admin must see all 5 users, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if rbac.Rank(all[i-1].Role) > rbac.Rank(all[i].Role) {
			t.Fatalf("list not sorted by hierarchy: %s before %s", all[i-1].Role, all[i].Role)
		}
	}

	devCtx := ctxAs("whoever", rbac.RoleDeveloper)
	visible, err := svc.ListVisible(devCtx)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 3 {
		t.Fatalf("developer must see 3 users (no admins, no peer devs), got %d", len(visible))
	}
	for _, u := range visible {
		if u.Role == rbac.RoleSuperAdmin || u.Role == rbac.RoleDeveloper {
			t.Fatalf("developer must not see %s", u.Role)
		}
	}
}

func TestUpdateSelfEditRules(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureBootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	adminCtx := ctxAs(BootstrapUserID, rbac.RoleSuperAdmin)
	dev, err := svc.Create(adminCtx, CreateUserParams{
		Username: "dev1", Name: "Dev One", Email: "d1@slt.lk", Password: "p1", Role: rbac.RoleDeveloper,
	})
	if err != nil {
		t.Fatal(err)
	}

	// super_admin may edit their own record through user management.
	name := "Root Admin"
	if _, err := svc.Update(adminCtx, BootstrapUserID, UserUpdate{Name: &name}); err != nil {
		t.Fatalf("super_admin self-edit must pass: %v", err)
	}

	// developer may not edit themselves through user management...
	devCtx := ctxAs(dev.ID, rbac.RoleDeveloper)
	if _, err := svc.Update(devCtx, dev.ID, UserUpdate{Name: &name}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("developer self-edit must be refused, got %v", err)
	}
	// ...but succeeds through the self-profile path.
	updated, err := svc.UpdateProfile(devCtx, UserUpdate{Name: &name})
	if err != nil {
		t.Fatalf("profile self-edit must pass: %v", err)
	}
	if updated.Name != "Root Admin" {
		t.Fatalf("merge failed: %+v", updated)
	}
	// Unspecified fields are retained.
	if updated.Email != "d1@slt.lk" || updated.Role != rbac.RoleDeveloper {
		t.Fatalf("unspecified fields must be retained: %+v", updated)
	}
}

func TestDeleteNeverSelf(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureBootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	adminCtx := ctxAs(BootstrapUserID, rbac.RoleSuperAdmin)
	if err := svc.Delete(adminCtx, BootstrapUserID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("self-delete must be refused, got %v", err)
	}
	dev, _ := svc.Create(adminCtx, CreateUserParams{
		Username: "dev1", Name: "Dev", Email: "d@slt.lk", Password: "p1", Role: rbac.RoleDeveloper,
	})
	if err := svc.Delete(adminCtx, dev.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, dev.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestResetPasswordRestoresDefault(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureBootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	adminCtx := ctxAs(BootstrapUserID, rbac.RoleSuperAdmin)
	partner, err := svc.Create(adminCtx, CreateUserParams{
		Username: "tlp", Name: "Partner", Email: "t@slt.lk", Password: "orig1",
		Role: rbac.RoleTechLeadPartner, Region: "Western Province",
	})
	if err != nil {
		t.Fatal(err)
	}

	newPw := "changed9"
	partnerCtx := ctxAs(partner.ID, rbac.RoleTechLeadPartner)
	if _, err := svc.UpdateProfile(partnerCtx, UserUpdate{Password: &newPw}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, "tlp", "orig1"); err == nil {
		t.Fatal("old password must no longer authenticate")
	}

	if err := svc.ResetPassword(adminCtx, partner.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, "tlp", "orig1"); err != nil {
		t.Fatalf("default password must authenticate after reset: %v", err)
	}

	// business_support lacks reset_passwords.
	bsCtx := ctxAs("u-bs", rbac.RoleBusinessSupport)
	if err := svc.ResetPassword(bsCtx, partner.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestAuthenticateByEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureBootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, BootstrapEmail, BootstrapPassword); err != nil {
		t.Fatalf("email credential must authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, BootstrapUsername, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost", BootstrapPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user must yield ErrInvalidCredentials, got %v", err)
	}
}
