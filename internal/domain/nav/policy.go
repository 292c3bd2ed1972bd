// Package nav is the role navigation policy: a static mapping from role to its side menu and
// default landing route. It holds no state and is safe for concurrent use.
package nav

import (
	domainauth "github.com/schoolhub/portal/internal/domain/auth"
)

// Public routes shared by every role.
const (
	RootPath     = "/"
	LoginPath    = "/login"
	RegisterPath = "/register"
	LogoutPath   = "/logout"
	ProfilePath  = "/profile"
)

// Entry is one item of the side navigation.
type Entry struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Path  string `json:"path"`
}

type roleNav struct {
	landing string
	menu    []Entry
}

//nolint:gochecknoglobals // read-only policy table
var table = map[domainauth.Role]roleNav{
	domainauth.RoleAdmin: {
		landing: "/admin/dashboard",
		menu: []Entry{
			{Label: "Dashboard", Icon: "layout-dashboard", Path: "/admin/dashboard"},
			{Label: "Users", Icon: "users", Path: "/admin/users"},
			{Label: "Profile", Icon: "user", Path: ProfilePath},
		},
	},
	domainauth.RoleTeacher: {
		landing: "/teacher/dashboard",
		menu: []Entry{
			{Label: "Dashboard", Icon: "layout-dashboard", Path: "/teacher/dashboard"},
			{Label: "My Courses", Icon: "book-open", Path: "/teacher/courses"},
			{Label: "Attendance", Icon: "calendar-check", Path: "/teacher/attendance"},
			{Label: "Grades", Icon: "award", Path: "/teacher/grades"},
			{Label: "Profile", Icon: "user", Path: ProfilePath},
		},
	},
	domainauth.RoleStudent: {
		landing: "/student/dashboard",
		menu: []Entry{
			{Label: "Dashboard", Icon: "layout-dashboard", Path: "/student/dashboard"},
			{Label: "My Grades", Icon: "award", Path: "/student/grades"},
			{Label: "Attendance", Icon: "calendar-check", Path: "/student/attendance"},
			{Label: "Requests", Icon: "file-text", Path: "/student/requests"},
			{Label: "Evaluation", Icon: "star", Path: "/student/evaluation"},
			{Label: "Profile", Icon: "user", Path: ProfilePath},
		},
	},
}

// MenuFor returns the ordered navigation entries for role.
// Unknown roles get an empty menu. The returned slice is a copy.
func MenuFor(role domainauth.Role) []Entry {
	rn, ok := table[role]
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, len(rn.menu))
	copy(out, rn.menu)
	return out
}

// LandingRouteFor returns the route a role lands on after login or registration,
// or when it visits the public landing page. Unknown roles land on RootPath.
func LandingRouteFor(role domainauth.Role) string {
	if rn, ok := table[role]; ok {
		return rn.landing
	}
	return RootPath
}

// Active marks which entry corresponds to currentPath, returning its index or -1.
func Active(menu []Entry, currentPath string) int {
	for i, e := range menu {
		if e.Path == currentPath {
			return i
		}
	}
	return -1
}

// RolesFor returns the roles whose menu links to path, in Roles() order.
func RolesFor(path string) []domainauth.Role {
	var out []domainauth.Role
	for _, role := range domainauth.Roles() {
		if Active(table[role].menu, path) >= 0 {
			out = append(out, role)
		}
	}
	return out
}
