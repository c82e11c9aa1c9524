package rbac

// Permission is an atomic capability checked against a role via the static
// matrix below.
type Permission string

const (
	// User management
	PermUserManagement  Permission = "user_management"
	PermCreateUsers     Permission = "create_users"
	PermUpdateUsers     Permission = "update_users"
	PermDeactivateUsers Permission = "deactivate_users"
	PermResetPasswords  Permission = "reset_passwords"
	PermAssignRoles     Permission = "assign_roles"

	// System settings
	PermSystemSettings    Permission = "system_settings"
	PermConfigureRegions  Permission = "configure_regions"
	PermConfigureServices Permission = "configure_services"

	// API & logs
	PermAPILogs   Permission = "api_logs"
	PermAuditLogs Permission = "audit_logs"

	// Job management
	PermCreateJobs       Permission = "create_jobs"
	PermAssignJobs       Permission = "assign_jobs"
	PermApproveJobs      Permission = "approve_jobs"
	PermViewAllJobs      Permission = "view_all_jobs"
	PermViewRegionalJobs Permission = "view_regional_jobs"
	PermViewAssignedJobs Permission = "view_assigned_jobs"
	PermUpdateJobStatus  Permission = "update_job_status"

	// Reports
	PermViewAllReports      Permission = "view_all_reports"
	PermViewRegionalReports Permission = "view_regional_reports"

	// Payments
	PermDefinePayments Permission = "define_payments"
	PermViewPayments   Permission = "view_payments"

	// Documents
	PermUploadDocuments Permission = "upload_documents"
	PermViewDocuments   Permission = "view_documents"
)

// rolePermissions is the role vs permission matrix. It is an explicit table,
// transcribed from the partner-management org chart; do not synthesize it from
// hierarchy ranks (regional_manager cannot approve jobs while business_support,
// lower in creation hierarchy, can).
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermUserManagement,
		PermCreateUsers,
		PermUpdateUsers,
		PermDeactivateUsers,
		PermResetPasswords,
		PermAssignRoles,
		PermSystemSettings,
		PermConfigureRegions,
		PermConfigureServices,
		PermAPILogs,
		PermAuditLogs,
		PermCreateJobs,
		PermAssignJobs,
		PermApproveJobs,
		PermViewAllJobs,
		PermViewAllReports,
		PermViewRegionalReports,
		PermDefinePayments,
		PermViewPayments,
		PermViewDocuments,
	},
	// Developer mirrors super_admin: full system control.
	RoleDeveloper: {
		PermUserManagement,
		PermCreateUsers,
		PermUpdateUsers,
		PermDeactivateUsers,
		PermResetPasswords,
		PermAssignRoles,
		PermSystemSettings,
		PermConfigureRegions,
		PermConfigureServices,
		PermAPILogs,
		PermAuditLogs,
		PermCreateJobs,
		PermAssignJobs,
		PermApproveJobs,
		PermViewAllJobs,
		PermViewAllReports,
		PermViewRegionalReports,
		PermDefinePayments,
		PermViewPayments,
		PermViewDocuments,
	},
	// Regional oversight: read + oversight, no settings, no user management,
	// no assign/approve.
	RoleRegionalManager: {
		PermCreateJobs,
		PermViewRegionalJobs,
		PermViewRegionalReports,
		PermViewDocuments,
	},
	// Operational control: no user management, settings, or API logs.
	RoleBusinessSupport: {
		PermCreateJobs,
		PermAssignJobs,
		PermApproveJobs,
		PermDefinePayments,
		PermViewPayments,
		PermViewRegionalReports,
		PermViewDocuments,
	},
	// Limited and task based: own jobs only, no payments, no creation.
	RoleTechLeadPartner: {
		PermViewAssignedJobs,
		PermUpdateJobStatus,
		PermUploadDocuments,
		PermViewDocuments,
	},
}

// HasPermission reports whether the role's static permission list contains
// perm. Unknown roles and permissions yield false.
func HasPermission(role Role, perm Permission) bool {
	if role == "" || perm == "" {
		return false
	}
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the role's permission list.
func Permissions(role Role) []Permission {
	src := rolePermissions[role]
	out := make([]Permission, len(src))
	copy(out, src)
	return out
}
