package httpx

// Page identifiers. Each names pages/<id>.tmpl, which defines the "content" block.
const (
	PageLanding   = "landing"
	PageLogin     = "login"
	PageRegister  = "register"
	PagePending   = "pending"
	PageDashboard = "dashboard"
	PageProfile   = "profile"
	PageError     = "error"
)

//nolint:gochecknoglobals // fixed list of page templates
var pageNames = []string{PageLanding, PageLogin, PageRegister, PagePending, PageDashboard, PageProfile, PageError}

// Template paths used by tests and dev mode.
const (
	// TemplatePathFromTest is the template directory relative to this package.
	TemplatePathFromTest = "../../frontend/templates"
	// TemplatePathFromRoot is the template directory relative to the repository root.
	TemplatePathFromRoot = "frontend/templates"
)

// maxFormBytes caps form and JSON request bodies.
const maxFormBytes = 64 << 10

// pendingRefreshSeconds is how soon the pending placeholder reloads itself.
const pendingRefreshSeconds = 1
