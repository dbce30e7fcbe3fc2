package featmy

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity is the opaque handle to an authenticated principal issued by the
// identity provider.
type Identity interface {
	ID() string
	Email() string
}

// IdentityProvider is the external identity collaborator. Implementations
// deliver identity-change notifications to subscribers: once with the current
// state when the subscription is installed, and again on every sign-in,
// sign-out, or token refresh. A nil identity means signed out.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(Identity)) (unsubscribe func())
}

// AccountDisabler is an optional IdentityProvider capability: providers that
// can block sign-in at the identity layer implement it, and the manager
// mirrors student status changes onto the account when they do.
type AccountDisabler interface {
	SetDisabled(ctx context.Context, uid string, disabled bool) error
}

// Document is a schemaless record as stored in a collection.
type Document = map[string]any

// DocumentStore is the external document database collaborator. Get returns a
// not-found error for absent keys; Update fails if the document is absent,
// Set creates or replaces.
type DocumentStore interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, doc Document) error
	Update(ctx context.Context, collection, key string, fields Document) error
	Delete(ctx context.Context, collection, key string) error
	Query(ctx context.Context, collection string, filters Document) ([]Document, error)
	AppendToArray(ctx context.Context, collection, key, field string, value any) error
	RemoveFromArray(ctx context.Context, collection, key, field string, value any) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] FEATMY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] FEATMY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] FEATMY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] FEATMY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
