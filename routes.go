package featmy

import "strings"

// Well-known paths.
const (
	PathHome              = "/"
	PathLogin             = "/login"
	PathSignup            = "/signup"
	PathActivate          = "/activate"
	PathPersonalDashboard = "/personal/dashboard"
	PathStudentDashboard  = "/student/dashboard"
)

// DashboardFor returns the canonical landing path for a role. Unknown roles
// land on the login path.
func DashboardFor(role Role) string {
	switch role {
	case RolePersonal:
		return PathPersonalDashboard
	case RoleStudent:
		return PathStudentDashboard
	default:
		return PathLogin
	}
}

// RouteMatch is the result of resolving a path against the table.
type RouteMatch struct {
	Pattern      string
	PageID       string
	Params       map[string]string
	RequiredRole Role
	Protected    bool
}

type routeEntry struct {
	pattern   string
	segments  []string
	wildcard  bool
	pageID    string
	role      Role
	protected bool
}

// RouteTable maps path patterns to page resources and role requirements.
// Patterns are literal or contain named parameter segments (prefix ':'),
// which match any single segment. Resolution tries an exact match first, then
// scans parameter patterns in insertion order; the first match wins.
type RouteTable struct {
	entries []routeEntry
	exact   map[string]int
}

func NewRouteTable() *RouteTable {
	return &RouteTable{exact: map[string]int{}}
}

// Handle registers a public route.
func (t *RouteTable) Handle(pattern, pageID string) *RouteTable {
	return t.add(pattern, pageID, RoleUnknown, false)
}

// HandleProtected registers a route that requires the given role.
func (t *RouteTable) HandleProtected(pattern, pageID string, role Role) *RouteTable {
	return t.add(pattern, pageID, role, true)
}

func (t *RouteTable) add(pattern, pageID string, role Role, protected bool) *RouteTable {
	segments := splitSegments(pattern)
	wildcard := false
	for _, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			wildcard = true
			break
		}
	}

	t.entries = append(t.entries, routeEntry{
		pattern:   pattern,
		segments:  segments,
		wildcard:  wildcard,
		pageID:    pageID,
		role:      role,
		protected: protected,
	})

	if !wildcard {
		if _, exists := t.exact[pattern]; !exists {
			t.exact[pattern] = len(t.entries) - 1
		}
	}

	return t
}

// Resolve matches a path against the table, extracting parameter values.
func (t *RouteTable) Resolve(path string) (*RouteMatch, bool) {
	if idx, ok := t.exact[path]; ok {
		return t.entries[idx].match(nil), true
	}

	segments := splitSegments(path)
	for i := range t.entries {
		entry := &t.entries[i]
		if !entry.wildcard {
			continue
		}
		if params, ok := matchSegments(entry.segments, segments); ok {
			return entry.match(params), true
		}
	}

	return nil, false
}

// RequiredRole returns the role a path requires; ok is false for public or
// unregistered paths.
func (t *RouteTable) RequiredRole(path string) (Role, bool) {
	match, found := t.Resolve(path)
	if !found || !match.Protected {
		return RoleUnknown, false
	}
	return match.RequiredRole, true
}

func (e *routeEntry) match(params map[string]string) *RouteMatch {
	if params == nil {
		params = map[string]string{}
	}
	return &RouteMatch{
		Pattern:      e.pattern,
		PageID:       e.pageID,
		Params:       params,
		RequiredRole: e.role,
		Protected:    e.protected,
	}
}

// matchSegments matches only when segment counts are equal and every
// non-parameter segment matches literally.
func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}

	params := map[string]string{}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}

	return params, true
}

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// DefaultRoutes is the application route table.
func DefaultRoutes() *RouteTable {
	t := NewRouteTable()

	t.Handle(PathHome, "home")
	t.Handle(PathLogin, "login")
	t.Handle(PathSignup, "signup")
	t.Handle(PathActivate, "activate")

	t.HandleProtected(PathPersonalDashboard, "personal-dashboard", RolePersonal)
	t.HandleProtected("/personal/students", "personal-students", RolePersonal)
	t.HandleProtected("/personal/student/:id", "personal-student-detail", RolePersonal)
	t.HandleProtected("/personal/exercises", "personal-exercises", RolePersonal)
	t.HandleProtected("/personal/workouts", "personal-workouts", RolePersonal)
	t.HandleProtected("/personal/workout/:id", "personal-workout-detail", RolePersonal)

	t.HandleProtected(PathStudentDashboard, "student-dashboard", RoleStudent)
	t.HandleProtected("/student/workout/:id", "student-workout", RoleStudent)
	t.HandleProtected("/student/profile", "student-profile", RoleStudent)

	return t
}
