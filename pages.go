package featmy

import (
	"context"
	"sync"
)

// View is what a page controller receives when its route is loaded.
type View struct {
	Path    string
	PageID  string
	Params  map[string]string
	Session SessionSnapshot
}

// PageHandler mounts and initializes a page. Each route maps to a statically
// known handler; the registry replaces dynamic execution of fetched page
// content, which has no safe equivalent here.
type PageHandler func(ctx context.Context, view *View) error

// PageRegistry maps page-resource identifiers to their handlers.
type PageRegistry struct {
	mu       sync.RWMutex
	handlers map[string]PageHandler
}

func NewPageRegistry() *PageRegistry {
	return &PageRegistry{handlers: map[string]PageHandler{}}
}

// Register binds a handler to a page id, replacing any previous binding.
func (r *PageRegistry) Register(pageID string, handler PageHandler) *PageRegistry {
	if handler == nil {
		return r
	}
	r.mu.Lock()
	r.handlers[pageID] = handler
	r.mu.Unlock()
	return r
}

// Handler looks up the handler for a page id.
func (r *PageRegistry) Handler(pageID string) (PageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[pageID]
	return handler, ok
}

// ErrorRenderer shows a recoverable in-place error panel for a failed page
// load. It must not panic; the pending queue keeps draining after it runs.
type ErrorRenderer func(ctx context.Context, path string, err error)
