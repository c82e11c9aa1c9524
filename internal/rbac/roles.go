package rbac

// Role is one of the five fixed authority classes on the platform.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RoleDeveloper       Role = "developer"
	RoleRegionalManager Role = "regional_manager"
	RoleBusinessSupport Role = "business_support"
	RoleTechLeadPartner Role = "tech_lead_partner"
)

// AllRoles lists every role in hierarchy order (highest authority first).
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleDeveloper,
	RoleRegionalManager,
	RoleBusinessSupport,
	RoleTechLeadPartner,
}

var roleNames = map[Role]string{
	RoleSuperAdmin:      "Super Admin",
	RoleDeveloper:       "Developer",
	RoleRegionalManager: "Regional Manager",
	RoleBusinessSupport: "Business Support Team",
	RoleTechLeadPartner: "Tech-Lead Partner",
}

var roleDescriptions = map[Role]string{
	RoleSuperAdmin:      "SLT Head Office / Central IT / Digital Team",
	RoleDeveloper:       "Internal or outsourced development team",
	RoleRegionalManager: "SLT Regional Heads / Managers",
	RoleBusinessSupport: "Central operational team",
	RoleTechLeadPartner: "Field technicians / freelancers (NVQ-4)",
}

var accessLevels = map[Role]string{
	RoleSuperAdmin:      "Highest",
	RoleDeveloper:       "Highest",
	RoleRegionalManager: "Read + Oversight",
	RoleBusinessSupport: "Operational Control",
	RoleTechLeadPartner: "Limited & Task-Based",
}

// Hierarchy ranks drive sort ordering only; permissions are never inferred
// from rank (the org chart has irregular authority shapes).
var roleHierarchy = map[Role]int{
	RoleSuperAdmin:      1,
	RoleDeveloper:       2,
	RoleRegionalManager: 3,
	RoleBusinessSupport: 4,
	RoleTechLeadPartner: 5,
}

// Valid reports whether r is one of the five known roles.
func (r Role) Valid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// Name returns the display name, or the raw value for unknown roles.
func (r Role) Name() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return string(r)
}

// Description returns the org-chart description of the role.
func (r Role) Description() string {
	return roleDescriptions[r]
}

// AccessLevel returns the coarse access tier label, "None" when unknown.
func (r Role) AccessLevel() string {
	if lvl, ok := accessLevels[r]; ok {
		return lvl
	}
	return "None"
}

// Rank returns the hierarchy level (1 = highest authority). Unknown roles
// sort last.
func Rank(r Role) int {
	if rank, ok := roleHierarchy[r]; ok {
		return rank
	}
	return 999
}
