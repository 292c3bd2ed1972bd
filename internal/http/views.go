package httpx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jmespath-community/go-jmespath"

	"github.com/schoolhub/portal/internal/domain/access"
	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/domain/nav"
)

// column pairs a label with the JMESPath expression evaluated against each row (or, for
// stats, against the whole resource).
type column struct {
	Label string
	Expr  string
}

// view is a role-restricted page backed by one gateway resource. Object resources are shown
// through Stats; array resources are shown as a table of Columns.
type view struct {
	Path     string
	Title    string
	Roles    []domainauth.Role
	Resource string
	Stats    []column
	Columns  []column
}

const emptyValue = "-"

//nolint:gochecknoglobals // read-only view table
var views = []view{
	{
		Path: "/admin/dashboard", Title: "Admin Dashboard", Roles: []domainauth.Role{domainauth.RoleAdmin},
		Resource: "/admin/stats",
		Stats: []column{
			{"Students", "total_students"},
			{"Teachers", "total_teachers"},
			{"Subjects", "total_subjects"},
			{"Pending requests", "pending_requests"},
		},
	},
	{
		Path: "/admin/users", Title: "Users", Roles: []domainauth.Role{domainauth.RoleAdmin},
		Resource: "/admin/users",
		Columns: []column{
			{"Username", "username"},
			{"Email", "email"},
			{"Role", "role"},
			{"Status", "status"},
		},
	},
	{
		Path: "/teacher/dashboard", Title: "Teacher Dashboard", Roles: []domainauth.Role{domainauth.RoleTeacher},
		Resource: "/teacher/stats",
		Stats: []column{
			{"Courses", "total_courses"},
			{"Students", "total_students"},
		},
	},
	{
		Path: "/teacher/courses", Title: "My Courses", Roles: []domainauth.Role{domainauth.RoleTeacher},
		Resource: "/teacher/courses",
		Columns: []column{
			{"Code", "subject.subject_code"},
			{"Subject", "subject.subject_name"},
			{"Section", "section"},
			{"Schedule", "schedule"},
			{"Semester", "join(' ', [semester, school_year])"},
		},
	},
	{
		Path: "/teacher/attendance", Title: "Attendance", Roles: []domainauth.Role{domainauth.RoleTeacher},
		Resource: "/teacher/courses",
		Columns: []column{
			{"Subject", "subject.subject_name"},
			{"Section", "section"},
			{"Schedule", "schedule"},
		},
	},
	{
		Path: "/teacher/grades", Title: "Grades", Roles: []domainauth.Role{domainauth.RoleTeacher},
		Resource: "/subjects",
		Columns: []column{
			{"Code", "subject_code"},
			{"Subject", "subject_name"},
			{"Units", "units"},
		},
	},
	{
		Path: "/student/dashboard", Title: "Student Dashboard", Roles: []domainauth.Role{domainauth.RoleStudent},
		Resource: "/student/grades",
		Stats: []column{
			{"Recorded grades", "length(@)"},
			{"Average score", "avg([].score)"},
		},
	},
	{
		Path: "/student/grades", Title: "My Grades", Roles: []domainauth.Role{domainauth.RoleStudent},
		Resource: "/student/grades",
		Columns: []column{
			{"Subject", "subject.subject_name"},
			{"Section", "section"},
			{"Period", "grading_period"},
			{"Score", "score"},
			{"Remarks", "remarks"},
		},
	},
	{
		Path: "/student/attendance", Title: "Attendance", Roles: []domainauth.Role{domainauth.RoleStudent},
		Resource: "/student/attendance",
		Columns: []column{
			{"Date", "date"},
			{"Status", "status"},
		},
	},
	{
		Path: "/student/requests", Title: "Requests", Roles: []domainauth.Role{domainauth.RoleStudent},
		Resource: "/student/requests",
		Columns: []column{
			{"Type", "request_type"},
			{"Status", "status"},
			{"Reason", "reason"},
			{"Filed", "created_at"},
		},
	},
	{
		Path: "/student/evaluation", Title: "Evaluation", Roles: []domainauth.Role{domainauth.RoleStudent},
		Resource: "/teachers",
		Columns: []column{
			{"Teacher", "join(' ', [first_name, last_name])"},
			{"Department", "department"},
		},
	},
	{
		Path: nav.ProfilePath, Title: "Profile",
	},
}

func (v view) requirement() access.Requirement {
	return access.RequireRoles(v.Roles...)
}

func findView(path string) (view, bool) {
	for _, v := range views {
		if v.Path == path {
			return v, true
		}
	}
	return view{}, false
}

// validateViews compiles every expression of the table.
func validateViews(vs []view) error {
	for _, v := range vs {
		for _, c := range append(append([]column{}, v.Stats...), v.Columns...) {
			if _, err := jmespath.Compile(c.Expr); err != nil {
				return fmt.Errorf("view %s column %q: %w", v.Path, c.Label, err)
			}
		}
	}
	return nil
}

// evalStats evaluates each stat against doc.
func evalStats(stats []column, doc any) []StatValue {
	out := make([]StatValue, 0, len(stats))
	for _, s := range stats {
		out = append(out, StatValue{Label: s.Label, Value: search(s.Expr, doc)})
	}
	return out
}

// evalRows evaluates the columns against each element of doc. A non-array doc yields no rows.
func evalRows(cols []column, doc any) [][]string {
	items, ok := doc.([]any)
	if !ok {
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, 0, len(cols))
		for _, c := range cols {
			row = append(row, search(c.Expr, item))
		}
		rows = append(rows, row)
	}
	return rows
}

func columnLabels(cols []column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Label)
	}
	return out
}

func search(expr string, doc any) string {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return emptyValue
	}
	return formatValue(v)
}

// formatValue renders a decoded JSON value for display.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return emptyValue
	case string:
		if strings.TrimSpace(t) == "" {
			return emptyValue
		}
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', 2, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return emptyValue
		}
		return string(b)
	}
}

// profileFields flattens the identity and its role-specific profile into labelled values.
func profileFields(id domainauth.Identity) []Field {
	fields := []Field{
		{Label: "Username", Value: formatValue(id.Username)},
		{Label: "Email", Value: formatValue(id.Email)},
		{Label: "Role", Value: id.Role.String()},
	}
	if len(id.Profile) == 0 {
		return fields
	}
	var profile map[string]any
	if err := json.Unmarshal(id.Profile, &profile); err != nil {
		return fields
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		if k == "id" || k == "user_id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Label: fieldLabel(k), Value: formatValue(profile[k])})
	}
	return fields
}

// fieldLabel turns snake_case keys into "Snake case" labels.
func fieldLabel(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
