package httpx

import (
	"net/http"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/domain/nav"
)

// PageData is the data every template receives.
type PageData struct {
	Page      string
	Title     string
	Path      string
	CSRFToken string

	// Session
	Authenticated bool
	Identity      domainauth.Identity
	Menu          []nav.Entry
	Active        int

	// Forms
	Error    string
	Form     map[string]string
	Redirect string

	// Dashboards
	Stats   []StatValue
	Columns []string
	Rows    [][]string
	Fields  []Field

	// Pending placeholder: seconds before the page reloads itself.
	RefreshAfter int
}

// StatValue is one labelled figure of a dashboard.
type StatValue struct {
	Label string
	Value string
}

// Field is one labelled value of a detail view.
type Field struct {
	Label string
	Value string
}

// newPageData fills the fields shared by every page from the request and its session.
func newPageData(r *http.Request, page, title string) PageData {
	data := PageData{
		Page:      page,
		Title:     title,
		Path:      r.URL.Path,
		CSRFToken: GetCSRFToken(r),
		Active:    -1,
		Form:      map[string]string{},
	}
	if id, ok := SessionState(r.Context()).Identity(); ok {
		data.Authenticated = true
		data.Identity = id
		data.Menu = nav.MenuFor(id.Role)
		data.Active = nav.Active(data.Menu, r.URL.Path)
	}
	return data
}
