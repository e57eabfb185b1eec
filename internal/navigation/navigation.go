// Package navigation decides which admin menu entries an actor may see.
package navigation

import (
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
)

// Entry is one menu item. It is visible when the actor holds any of
// AnyOf and, if Feature is set, the feature is enabled for the tenant.
type Entry struct {
	Key     string
	Label   string
	Path    string
	Section string
	AnyOf   []authz.Permission
	Feature string
}

// Item is the rendered form of a visible entry.
type Item struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Path    string `json:"path"`
	Section string `json:"section"`
}

// FlagChecker resolves feature keys. *featureflag.Gate implements it.
type FlagChecker interface {
	IsEnabled(key string) bool
}

// Menu is the admin web menu in display order.
var Menu = []Entry{
	{Key: "dashboard", Label: "Dashboard", Path: "/dashboard", Section: "overview",
		AnyOf: []authz.Permission{authz.DashboardReadDefault}},
	{Key: "students", Label: "Students", Path: "/students", Section: "academics",
		AnyOf:   []authz.Permission{authz.StudentReadTenant, authz.StudentReadBranch},
		Feature: featureflag.ModuleAcademics.Key()},
	{Key: "attendance", Label: "Attendance", Path: "/attendance", Section: "academics",
		AnyOf:   []authz.Permission{authz.AttendanceReadBranch, authz.AttendanceMarkBranch},
		Feature: featureflag.ModuleAttendance.Key()},
	{Key: "exams", Label: "Exams", Path: "/exams", Section: "academics",
		AnyOf:   []authz.Permission{authz.ExamReadBranch, authz.ExamGradeBranch},
		Feature: featureflag.ModuleExams.Key()},
	{Key: "fees", Label: "Fees", Path: "/fees", Section: "finance",
		AnyOf:   []authz.Permission{authz.FeeReadTenant, authz.FeeCollectBranch},
		Feature: featureflag.ModuleFees.Key()},
	{Key: "library", Label: "Library", Path: "/library", Section: "services",
		AnyOf:   []authz.Permission{authz.LibraryReadBranch, authz.LibraryIssueBranch},
		Feature: featureflag.ModuleLibrary.Key()},
	{Key: "transport", Label: "Transport", Path: "/transport", Section: "services",
		AnyOf:   []authz.Permission{authz.TransportReadTenant},
		Feature: featureflag.ModuleTransport.Key()},
	{Key: "communication", Label: "Messages", Path: "/communication", Section: "services",
		AnyOf:   []authz.Permission{authz.CommunicationSendBranch},
		Feature: featureflag.ModuleCommunication.Key()},
	{Key: "reports", Label: "Reports", Path: "/reports", Section: "insights",
		AnyOf:   []authz.Permission{authz.ReportReadTenant, authz.ReportReadBranch},
		Feature: featureflag.ModuleReports.Key()},
	{Key: "users", Label: "Users", Path: "/users", Section: "administration",
		AnyOf:   []authz.Permission{authz.UserRead},
		Feature: featureflag.ModuleUsers.Key()},
	{Key: "roles", Label: "Roles", Path: "/roles", Section: "administration",
		AnyOf: []authz.Permission{authz.RoleRead, authz.RoleManage}},
	{Key: "features", Label: "Modules", Path: "/settings/modules", Section: "administration",
		AnyOf: []authz.Permission{authz.FeatureManageTenant}},
	{Key: "audit", Label: "Audit log", Path: "/audit", Section: "administration",
		AnyOf: []authz.Permission{authz.AuditExportTenant}},
}

// Visible filters entries down to what actor may see. While loading, or
// without an actor, nothing is shown: entries are omitted, never rendered
// as disabled placeholders.
func Visible(entries []Entry, actor *authz.Actor, flags FlagChecker, loading bool) []Item {
	items := make([]Item, 0, len(entries))
	if loading || actor == nil {
		return items
	}
	for _, e := range entries {
		if !authz.HasAnyPermission(actor, e.AnyOf...) {
			continue
		}
		if e.Feature != "" && flags != nil && !flags.IsEnabled(e.Feature) {
			continue
		}
		items = append(items, Item{Key: e.Key, Label: e.Label, Path: e.Path, Section: e.Section})
	}
	return items
}
