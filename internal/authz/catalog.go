package authz

import (
	"fmt"
	"sort"
)

// Permission catalogue for the school modules.
var (
	UserRead   = MustPermission("user:read:tenant")
	UserCreate = MustPermission("user:create:tenant")
	UserUpdate = MustPermission("user:update:tenant")
	UserDelete = MustPermission("user:delete:tenant")

	UserReadOwn = MustPermission("user:read:own")

	RoleRead   = MustPermission("role:read:tenant")
	RoleManage = MustPermission("role:manage:tenant")

	StudentReadTenant   = MustPermission("student:read:tenant")
	StudentReadBranch   = MustPermission("student:read:branch")
	StudentCreateTenant = MustPermission("student:create:tenant")
	StudentCreateBranch = MustPermission("student:create:branch")
	StudentUpdateTenant = MustPermission("student:update:tenant")
	StudentUpdateBranch = MustPermission("student:update:branch")
	StudentDeleteTenant = MustPermission("student:delete:tenant")

	AttendanceReadBranch = MustPermission("attendance:read:branch")
	AttendanceMarkBranch = MustPermission("attendance:mark:branch")

	FeeReadTenant    = MustPermission("fee:read:tenant")
	FeeCollectBranch = MustPermission("fee:collect:branch")

	ExamReadBranch  = MustPermission("exam:read:branch")
	ExamGradeBranch = MustPermission("exam:grade:branch")

	LibraryReadBranch  = MustPermission("library:read:branch")
	LibraryIssueBranch = MustPermission("library:issue:branch")

	TransportReadTenant = MustPermission("transport:read:tenant")

	CommunicationSendBranch = MustPermission("communication:send:branch")

	ReportReadTenant = MustPermission("report:read:tenant")
	ReportReadBranch = MustPermission("report:read:branch")

	AuditExportTenant = MustPermission("audit:export:tenant")

	FeatureManageTenant = MustPermission("feature:manage:tenant")

	DashboardReadDefault = MustPermission("dashboard:read:default")
)

// Role is a named bundle of permissions. Roles are expanded into final
// permission strings when a token is issued; the resolver never sees them.
type Role struct {
	Name        string
	Description string
	Permissions []Permission
}

var builtinRoles = map[string]Role{
	"super_admin": {
		Name:        "super_admin",
		Description: "Full access to every module of the tenant",
		Permissions: []Permission{
			UserRead, UserCreate, UserUpdate, UserDelete, UserReadOwn,
			RoleRead, RoleManage,
			StudentReadTenant, StudentCreateTenant, StudentUpdateTenant, StudentDeleteTenant,
			AttendanceReadBranch, AttendanceMarkBranch,
			FeeReadTenant, FeeCollectBranch,
			ExamReadBranch, ExamGradeBranch,
			LibraryReadBranch, LibraryIssueBranch,
			TransportReadTenant,
			CommunicationSendBranch,
			ReportReadTenant,
			AuditExportTenant,
			FeatureManageTenant,
			DashboardReadDefault,
		},
	},
	"school_admin": {
		Name:        "school_admin",
		Description: "Tenant administration without feature management",
		Permissions: []Permission{
			UserRead, UserCreate, UserUpdate, UserReadOwn,
			RoleRead,
			StudentReadTenant, StudentCreateTenant, StudentUpdateTenant,
			FeeReadTenant,
			TransportReadTenant,
			ReportReadTenant,
			DashboardReadDefault,
		},
	},
	"branch_admin": {
		Name:        "branch_admin",
		Description: "Administration of a single branch",
		Permissions: []Permission{
			UserReadOwn,
			StudentReadBranch, StudentCreateBranch, StudentUpdateBranch,
			AttendanceReadBranch,
			ExamReadBranch,
			ReportReadBranch,
			DashboardReadDefault,
		},
	},
	"teacher": {
		Name:        "teacher",
		Description: "Classroom staff",
		Permissions: []Permission{
			UserReadOwn,
			StudentReadBranch,
			AttendanceReadBranch, AttendanceMarkBranch,
			ExamReadBranch, ExamGradeBranch,
			CommunicationSendBranch,
			DashboardReadDefault,
		},
	},
	"accountant": {
		Name:        "accountant",
		Description: "Fee collection and reporting",
		Permissions: []Permission{
			UserReadOwn,
			StudentReadTenant,
			FeeReadTenant, FeeCollectBranch,
			ReportReadTenant,
			DashboardReadDefault,
		},
	},
	"librarian": {
		Name:        "librarian",
		Description: "Library desk",
		Permissions: []Permission{
			UserReadOwn,
			StudentReadBranch,
			LibraryReadBranch, LibraryIssueBranch,
			DashboardReadDefault,
		},
	},
}

// LookupRole returns the built-in role with the given name.
func LookupRole(name string) (Role, error) {
	role, ok := builtinRoles[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return role, nil
}

// Roles returns the built-in roles ordered by name.
func Roles() []Role {
	out := make([]Role, 0, len(builtinRoles))
	for _, r := range builtinRoles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExpandRoles flattens roles plus any directly granted permissions into a
// sorted, de-duplicated list of permission strings suitable for a token.
func ExpandRoles(roles []string, extra []string) ([]string, error) {
	set := make(map[string]struct{})
	for _, name := range roles {
		role, err := LookupRole(name)
		if err != nil {
			return nil, err
		}
		for _, p := range role.Permissions {
			set[string(p)] = struct{}{}
		}
	}
	granted, err := ParsePermissions(extra)
	if err != nil {
		return nil, err
	}
	for _, p := range granted {
		set[string(p)] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
