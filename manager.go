package featmy

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

type managerState int

const (
	stateUninitialized managerState = iota
	stateInitializing
	stateReady
)

// DefaultSettleDelay is the pause between tearing down and reattaching the
// identity-provider subscription. Resubscribing immediately after an explicit
// sign-out can race with the provider's own cleanup.
var DefaultSettleDelay = 500 * time.Millisecond

// Manager owns the current-session state and its lifecycle. It is the only
// writer of the session; the Router and page collaborators read it through
// SessionReader.
type Manager struct {
	mu       sync.RWMutex
	provider IdentityProvider
	store    DocumentStore
	logger   Logger
	activity ActivitySink
	clock    func() time.Time
	sleep    func(time.Duration)
	settle   time.Duration

	state       managerState
	identity    Identity
	role        Role
	readyCh     chan struct{}
	readyClosed bool
	unsubscribe func()

	listeners    map[int]SessionListener
	nextListener int
}

var _ SessionReader = (*Manager)(nil)

// NewManager returns a Manager wired to the given collaborators.
func NewManager(provider IdentityProvider, store DocumentStore) *Manager {
	return &Manager{
		provider:  provider,
		store:     store,
		logger:    defLogger{},
		activity:  noopActivitySink{},
		clock:     time.Now,
		sleep:     time.Sleep,
		settle:    DefaultSettleDelay,
		readyCh:   make(chan struct{}),
		listeners: map[int]SessionListener{},
	}
}

func (m *Manager) WithLogger(logger Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithActivitySink configures an ActivitySink for auth and reconcile events.
func (m *Manager) WithActivitySink(sink ActivitySink) *Manager {
	m.activity = normalizeActivitySink(sink)
	return m
}

// WithSettleDelay overrides the provider settling delay (useful for tests).
func (m *Manager) WithSettleDelay(d time.Duration) *Manager {
	m.settle = d
	return m
}

// WithClock injects a custom clock (useful for tests).
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// Initialize attaches the identity-change subscription and blocks until the
// provider delivers its first notification. It is idempotent: concurrent
// callers share the same in-flight outcome and all resolve on the first
// callback.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case stateReady:
		m.mu.Unlock()
		return nil
	case stateInitializing:
		ready := m.readyCh
		m.mu.Unlock()
		return m.awaitReady(ctx, ready)
	}

	m.state = stateInitializing
	ready := m.readyCh
	m.mu.Unlock()

	unsubscribe := m.provider.Subscribe(m.handleIdentityChange)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	return m.awaitReady(ctx, ready)
}

// Reinitialize tears down and rebuilds the provider subscription, pausing for
// the settle delay in between.
func (m *Manager) Reinitialize(ctx context.Context) error {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	m.sleep(m.settle)

	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during reinitialize")
	}

	unsubscribe = m.provider.Subscribe(m.handleIdentityChange)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	return nil
}

// Ready is closed once the provider has produced its first definitive state.
// It never reopens, including across Reinitialize.
func (m *Manager) Ready() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readyCh
}

// Session returns the current session snapshot. Pure in-memory read.
func (m *Manager) Session() SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return SessionSnapshot{Identity: m.identity, Role: m.role}
}

// CurrentIdentity returns the authenticated identity, or nil.
func (m *Manager) CurrentIdentity() Identity {
	return m.Session().Identity
}

// CurrentRole returns the session role. RoleUnknown when absent or not yet
// derived from the profile store.
func (m *Manager) CurrentRole() Role {
	return m.Session().Role
}

func (m *Manager) IsAuthenticated() bool {
	return m.Session().Authenticated()
}

func (m *Manager) IsPersonal() bool {
	return m.Session().Role == RolePersonal
}

func (m *Manager) IsStudent() bool {
	return m.Session().Role == RoleStudent
}

// OnSessionChange registers a listener and returns its unsubscribe handle.
func (m *Manager) OnSessionChange(fn SessionListener) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Login authenticates against the identity provider and adopts the matching
// profile record as the session. A student profile with status inactive is
// signed back out before the error is returned; a disabled student must never
// retain a live session.
func (m *Manager) Login(ctx context.Context, email, password string) (*UserProfile, error) {
	identity, err := m.provider.SignIn(ctx, NormalizeEmail(email), password)
	if err != nil {
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"email": NormalizeEmail(email), "error": err.Error()},
		})
		return nil, err
	}

	profile, err := m.fetchProfile(ctx, identity.ID())
	if err != nil {
		if IsNotFound(err) {
			m.signOutQuiet(ctx)
			m.setSession(nil, RoleUnknown)
			return nil, ErrDataIntegrity.WithMetadata(map[string]any{"auth_uid": identity.ID()})
		}
		return nil, err
	}

	if profile.Role == RoleStudent && profile.Status == UserStatusInactive {
		m.signOutQuiet(ctx)
		m.setSession(nil, RoleUnknown)
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			UserID:    identity.ID(),
			Metadata:  map[string]any{"reason": "account disabled"},
		})
		return nil, ErrAccountDisabled
	}

	m.setSession(identity, profile.Role)
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    identity.ID(),
	})

	return profile, nil
}

// Logout clears the local session, signs out of the provider, and
// resynchronizes the subscription. Provider-side sign-out failures are logged
// and never surfaced; logout is a local-state guarantee.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.RLock()
	uid := ""
	if m.identity != nil {
		uid = m.identity.ID()
	}
	m.mu.RUnlock()

	m.setSession(nil, RoleUnknown)

	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("logout provider sign-out error: %v", err)
	}

	if err := m.Reinitialize(ctx); err != nil {
		m.logger.Warn("logout reinitialize error: %v", err)
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    uid,
	})

	return nil
}

// handleIdentityChange is the provider subscription callback. The role is
// re-derived from the profile store on every identity change, never cached
// across identities; a failed or missing fetch leaves the role unknown.
func (m *Manager) handleIdentityChange(identity Identity) {
	ctx := context.Background()

	role := RoleUnknown
	if identity != nil {
		profile, err := m.fetchProfile(ctx, identity.ID())
		switch {
		case err == nil && profile.Role == RoleStudent && profile.Status == UserStatusInactive:
			// A disabled student never gets a live session, not even for the
			// window between the provider's sign-in notification and the
			// login status check. Listeners must not observe it.
			m.logger.Warn("refusing session for inactive student %s", identity.ID())
			m.markReady()
			m.setSession(nil, RoleUnknown)
			return
		case err == nil:
			role = profile.Role
		case IsNotFound(err):
			m.logger.Debug("identity %s has no profile record yet", identity.ID())
		default:
			m.logger.Warn("profile fetch failed during identity change: %v", err)
		}
	}

	m.markReady()

	if identity == nil {
		m.setSession(nil, RoleUnknown)
		return
	}
	m.setSession(identity, role)
}

func (m *Manager) markReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateReady
	if !m.readyClosed {
		m.readyClosed = true
		close(m.readyCh)
	}
}

func (m *Manager) awaitReady(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during initialization")
	}
}

// setSession updates the session state and notifies listeners. Listener
// panics are isolated so one misbehaving subscriber cannot block the rest.
func (m *Manager) setSession(identity Identity, role Role) {
	m.mu.Lock()
	if sameIdentity(m.identity, identity) && m.role == role {
		m.mu.Unlock()
		return
	}

	m.identity = identity
	m.role = role

	snapshot := make([]SessionListener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		snapshot = append(snapshot, fn)
	}
	m.mu.Unlock()

	for _, fn := range snapshot {
		m.notifyListener(fn, identity, role)
	}

	m.recordActivity(context.Background(), ActivityEvent{
		EventType: ActivityEventSessionChanged,
		UserID:    identityID(identity),
		Metadata:  map[string]any{"role": role},
	})
}

func (m *Manager) notifyListener(fn SessionListener, identity Identity, role Role) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session listener panic: %v", r)
		}
	}()
	fn(identity, role)
}

func (m *Manager) fetchProfile(ctx context.Context, key string) (*UserProfile, error) {
	doc, err := m.store.Get(ctx, CollectionUsers, key)
	if err != nil {
		return nil, err
	}
	profile, err := profileFromDocument(doc)
	if err != nil {
		return nil, err
	}
	profile.EnsureStatus()
	return profile, nil
}

func (m *Manager) signOutQuiet(ctx context.Context) {
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("provider sign-out error: %v", err)
	}
}

// bestEffort runs a non-critical maintenance write. Failures are logged and
// surfaced as reconcile.pending activity events, never propagated: the
// operation they are attached to already succeeded on its primary effect.
func (m *Manager) bestEffort(ctx context.Context, op string, meta map[string]any, fn func() error) {
	err := fn()
	if err == nil {
		return
	}

	if meta == nil {
		meta = map[string]any{}
	}
	meta["op"] = op
	meta["error"] = err.Error()

	m.logger.Warn("best-effort %s failed: %s", op, print.MaybePrettyJSON(meta))
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventReconcilePending,
		Metadata:  meta,
	})
}

func (m *Manager) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.clock()
	}

	sink := normalizeActivitySink(m.activity)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}

func identityID(identity Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID()
}
