package featmy

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultAuthTimeout bounds how long navigation waits for the session
// subsystem's first definitive state before proceeding anyway. Treating
// "unknown" as usable keeps navigation available when the identity provider
// is slow.
var DefaultAuthTimeout = 5 * time.Second

// Router owns navigation state: the current path, a FIFO queue of pending
// requests, and a busy flag. Navigations execute strictly one at a time and
// in arrival order; this queue is the system's only mutual-exclusion
// mechanism around page transitions.
type Router struct {
	mu      sync.Mutex
	current string
	queue   []string
	busy    bool
	active  string

	session     SessionReader
	routes      *RouteTable
	pages       *PageRegistry
	logger      Logger
	activity    ActivitySink
	onError     ErrorRenderer
	locationFn  func(string)
	authTimeout time.Duration
	loginPath   string
}

// NewRouter returns a Router over the given session reader, route table, and
// page registry.
func NewRouter(session SessionReader, routes *RouteTable, pages *PageRegistry) *Router {
	return &Router{
		session:     session,
		routes:      routes,
		pages:       pages,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		authTimeout: DefaultAuthTimeout,
		loginPath:   PathLogin,
	}
}

func (r *Router) WithLogger(logger Logger) *Router {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithActivitySink configures a sink for navigation.blocked events.
func (r *Router) WithActivitySink(sink ActivitySink) *Router {
	r.activity = normalizeActivitySink(sink)
	return r
}

// WithErrorRenderer sets the in-place error panel hook for failed page loads.
func (r *Router) WithErrorRenderer(fn ErrorRenderer) *Router {
	r.onError = fn
	return r
}

// WithLocationSink keeps an external location indicator in sync with the
// resolved path.
func (r *Router) WithLocationSink(fn func(path string)) *Router {
	r.locationFn = fn
	return r
}

// WithAuthTimeout overrides the session readiness timeout.
func (r *Router) WithAuthTimeout(d time.Duration) *Router {
	if d > 0 {
		r.authTimeout = d
	}
	return r
}

// WithLoginPath overrides the unauthenticated redirect target.
func (r *Router) WithLoginPath(path string) *Router {
	if path != "" {
		r.loginPath = normalizePath(path)
	}
	return r
}

// CurrentPath returns the path of the last successfully loaded page.
func (r *Router) CurrentPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate requests a transition to path. A request for the path currently
// being processed is dropped, as is a request equal to the queue's tail. If a
// navigation is already in flight the request is queued and Navigate returns
// immediately; otherwise the caller drains the queue, processing each pending
// path to completion before popping the next.
func (r *Router) Navigate(ctx context.Context, path string) error {
	path = normalizePath(path)

	r.mu.Lock()
	if !r.enqueueLocked(path) {
		r.mu.Unlock()
		return nil
	}
	if r.busy {
		r.mu.Unlock()
		return nil
	}
	r.busy = true
	r.mu.Unlock()

	return r.drain(ctx)
}

func (r *Router) enqueueLocked(path string) bool {
	if r.active == path {
		return false
	}
	if n := len(r.queue); n > 0 && r.queue[n-1] == path {
		return false
	}
	r.queue = append(r.queue, path)
	return true
}

// drain pops and processes pending paths until the queue is empty. The busy
// flag is cleared on every exit path, including panics, so the queue can keep
// draining after an error.
func (r *Router) drain(ctx context.Context) error {
	defer func() {
		r.mu.Lock()
		r.busy = false
		r.active = ""
		r.mu.Unlock()
	}()

	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return nil
		}
		path := r.queue[0]
		r.queue = r.queue[1:]
		r.active = path
		r.mu.Unlock()

		if err := r.process(ctx, path); err != nil {
			return err
		}

		r.mu.Lock()
		r.active = ""
		r.mu.Unlock()
	}
}

// process applies the guard sequence for one path and loads its page. Guard
// redirects re-enter the queue and are handled by the running drain loop.
func (r *Router) process(ctx context.Context, path string) error {
	if err := r.waitForAuth(ctx); err != nil {
		return err
	}

	match, found := r.routes.Resolve(path)
	sess := r.session.Session()

	if found && match.Protected {
		if !sess.Authenticated() {
			r.redirect(ctx, path, r.loginPath, "unauthenticated")
			return nil
		}
		if sess.Role != match.RequiredRole {
			target := DashboardFor(sess.Role)
			if path != target {
				r.redirect(ctx, path, target, "role mismatch")
				return nil
			}
		}
	} else if sess.Authenticated() && sess.HasKnownRole() {
		// Everything without a role requirement is public, including paths
		// with no route entry at all. A present-but-unknown role means an
		// activation or signup flow is mid-flight; the public page is allowed
		// to load so the flow is not interrupted.
		target := DashboardFor(sess.Role)
		if path != target {
			r.redirect(ctx, path, target, "already logged in")
			return nil
		}
	}

	r.mu.Lock()
	unchanged := r.current == path
	r.mu.Unlock()
	if unchanged {
		return nil
	}

	r.load(ctx, path, match, sess)
	return nil
}

// waitForAuth blocks until the session subsystem has produced its first
// definitive state, proceeding anyway after the hard timeout.
func (r *Router) waitForAuth(ctx context.Context) error {
	select {
	case <-r.session.Ready():
		return nil
	case <-time.After(r.authTimeout):
		r.logger.Warn("session readiness timed out after %s, navigating with unknown session", r.authTimeout)
		return nil
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during navigation")
	}
}

func (r *Router) redirect(ctx context.Context, from, to, reason string) {
	r.logger.Debug("redirecting %s -> %s (%s)", from, to, reason)

	if err := normalizeActivitySink(r.activity).Record(ctx, ActivityEvent{
		EventType: ActivityEventNavigationBlocked,
		Metadata:  map[string]any{"from": from, "to": to, "reason": reason},
	}); err != nil {
		r.logger.Warn("activity sink record error: %v", err)
	}

	r.mu.Lock()
	r.enqueueLocked(to)
	r.mu.Unlock()
}

// load resolves the page handler and runs it. Unregistered paths fall back to
// the login page. A handler error is terminal for this navigation only: it is
// rendered in place and neither currentPath nor the pending queue is touched.
func (r *Router) load(ctx context.Context, path string, match *RouteMatch, sess SessionSnapshot) {
	if match == nil {
		fallback, ok := r.routes.Resolve(r.loginPath)
		if !ok {
			r.logger.Error("no route for %s and no login fallback registered", path)
			return
		}
		match = fallback
	}

	handler, ok := r.pages.Handler(match.PageID)
	if !ok {
		r.logger.Error("no page handler registered for %q (path %s)", match.PageID, path)
		return
	}

	view := &View{
		Path:    path,
		PageID:  match.PageID,
		Params:  match.Params,
		Session: sess,
	}

	if err := handler(ctx, view); err != nil {
		r.logger.Error("page load failed for %s: %v", path, err)
		if r.onError != nil {
			r.onError(ctx, path, err)
		}
		return
	}

	r.mu.Lock()
	r.current = path
	r.mu.Unlock()

	if r.locationFn != nil {
		r.locationFn(path)
	}
}

// normalizePath ensures a leading separator and strips query/fragment parts.
// A leading '#' is dropped so hash-style locations resolve to the same route.
func normalizePath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "#")
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
