package featmy_test

import (
	"context"
	"testing"
	"time"

	featmy "github.com/AFJoao/FEATMY-V2"
	"github.com/AFJoao/FEATMY-V2/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedProfile(t *testing.T, store featmy.DocumentStore, key string, profile featmy.Document) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), featmy.CollectionUsers, key, profile))
}

func newTestManager(provider featmy.IdentityProvider, store featmy.DocumentStore) *featmy.Manager {
	return featmy.NewManager(provider, store).WithSettleDelay(0)
}

func TestManagerInitializeResolvesWithoutIdentity(t *testing.T) {
	provider := newFakeProvider()
	manager := newTestManager(provider, memstore.New())

	require.NoError(t, manager.Initialize(context.Background()))

	assert.False(t, manager.IsAuthenticated())
	assert.Equal(t, featmy.RoleUnknown, manager.CurrentRole())

	select {
	case <-manager.Ready():
	default:
		t.Fatal("expected readiness signal after first provider notification")
	}
}

func TestManagerInitializeIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	manager := newTestManager(provider, memstore.New())

	require.NoError(t, manager.Initialize(context.Background()))
	require.NoError(t, manager.Initialize(context.Background()))
	require.NoError(t, manager.Initialize(context.Background()))

	assert.Equal(t, 1, provider.subscribeCalls, "repeat initialization must not duplicate subscriptions")
}

func TestManagerInitializeDerivesRoleFromProfile(t *testing.T) {
	provider := newFakeProvider()
	store := memstore.New()
	seedProfile(t, store, "uid-1", featmy.Document{
		"id":     "uid-1",
		"role":   featmy.RolePersonal,
		"status": featmy.UserStatusActive,
	})

	// An identity is already signed in when the manager attaches.
	provider.emit(stubIdentity{uid: "uid-1", email: "coach@featmy.com"})

	manager := newTestManager(provider, store)
	require.NoError(t, manager.Initialize(context.Background()))

	assert.True(t, manager.IsAuthenticated())
	assert.True(t, manager.IsPersonal())
}

func TestManagerIdentityChangeReDerivesRole(t *testing.T) {
	provider := newFakeProvider()
	store := memstore.New()
	manager := newTestManager(provider, store)
	require.NoError(t, manager.Initialize(context.Background()))

	seedProfile(t, store, "uid-2", featmy.Document{
		"id":     "uid-2",
		"role":   featmy.RoleStudent,
		"status": featmy.UserStatusActive,
	})

	provider.emit(stubIdentity{uid: "uid-2", email: "aluno@featmy.com"})
	assert.Equal(t, featmy.RoleStudent, manager.CurrentRole())

	provider.emit(nil)
	assert.False(t, manager.IsAuthenticated())
	assert.Equal(t, featmy.RoleUnknown, manager.CurrentRole(), "role must not survive the identity that produced it")
}

func TestManagerLoginSuccess(t *testing.T) {
	provider := newFakeProvider()
	provider.register("coach@featmy.com", "secret1", "uid-1")

	store := memstore.New()
	seedProfile(t, store, "uid-1", featmy.Document{
		"id":     "uid-1",
		"role":   featmy.RolePersonal,
		"status": featmy.UserStatusActive,
		"name":   "Coach",
	})

	sink := &recordingSink{}
	manager := newTestManager(provider, store).WithActivitySink(sink)
	require.NoError(t, manager.Initialize(context.Background()))

	profile, err := manager.Login(context.Background(), "Coach@FEATMY.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", profile.ID)
	assert.True(t, manager.IsPersonal())
	assert.Len(t, sink.byType(featmy.ActivityEventLoginSuccess), 1)
}

func TestManagerLoginMissingProfileSignsBackOut(t *testing.T) {
	provider := newFakeProvider()
	provider.register("ghost@featmy.com", "secret1", "uid-ghost")

	manager := newTestManager(provider, memstore.New())
	require.NoError(t, manager.Initialize(context.Background()))

	_, err := manager.Login(context.Background(), "ghost@featmy.com", "secret1")
	require.Error(t, err)

	assert.Equal(t, "Não foi possível carregar seu perfil. Tente novamente.", featmy.UserMessage(err))
	assert.False(t, manager.IsAuthenticated(), "an identity with no profile record must not keep a session")
	assert.GreaterOrEqual(t, provider.signOutCalls, 1)
}

func TestManagerLoginDisabledStudentSignsBackOut(t *testing.T) {
	provider := newFakeProvider()
	provider.register("aluno@featmy.com", "secret1", "uid-2")

	store := memstore.New()
	seedProfile(t, store, "uid-2", featmy.Document{
		"id":     "uid-2",
		"role":   featmy.RoleStudent,
		"status": featmy.UserStatusInactive,
	})

	sink := &recordingSink{}
	manager := newTestManager(provider, store).WithActivitySink(sink)
	require.NoError(t, manager.Initialize(context.Background()))

	_, err := manager.Login(context.Background(), "aluno@featmy.com", "secret1")
	require.Error(t, err)

	assert.Equal(t, "Sua conta está inativa. Fale com seu personal.", featmy.UserMessage(err))
	assert.False(t, manager.IsAuthenticated(), "a disabled student must never retain a live session")
	assert.GreaterOrEqual(t, provider.signOutCalls, 1)
	assert.Len(t, sink.byType(featmy.ActivityEventLoginFailure), 1)
}

func TestManagerDisabledStudentNeverReachesListeners(t *testing.T) {
	provider := newFakeProvider()
	provider.register("aluno@featmy.com", "secret1", "uid-2")

	store := memstore.New()
	seedProfile(t, store, "uid-2", featmy.Document{
		"id":     "uid-2",
		"role":   featmy.RoleStudent,
		"status": featmy.UserStatusInactive,
	})

	manager := newTestManager(provider, store)
	require.NoError(t, manager.Initialize(context.Background()))

	var observed []featmy.Role
	manager.OnSessionChange(func(identity featmy.Identity, role featmy.Role) {
		if identity != nil {
			observed = append(observed, role)
		}
	})

	_, err := manager.Login(context.Background(), "aluno@featmy.com", "secret1")
	require.Error(t, err)

	assert.Empty(t, observed,
		"no listener may observe a live session for a disabled account, not even transiently")
	assert.False(t, manager.IsAuthenticated())

	// The same holds for an identity already signed in when the provider
	// notifies, e.g. a restored session after the trainer disabled the account.
	provider.emit(stubIdentity{uid: "uid-2", email: "aluno@featmy.com"})
	assert.Empty(t, observed)
	assert.False(t, manager.IsAuthenticated())
}

func TestManagerLogoutSucceedsDespiteProviderError(t *testing.T) {
	provider := newFakeProvider()
	provider.register("coach@featmy.com", "secret1", "uid-1")

	store := memstore.New()
	seedProfile(t, store, "uid-1", featmy.Document{
		"id":     "uid-1",
		"role":   featmy.RolePersonal,
		"status": featmy.UserStatusActive,
	})

	manager := newTestManager(provider, store)
	require.NoError(t, manager.Initialize(context.Background()))

	_, err := manager.Login(context.Background(), "coach@featmy.com", "secret1")
	require.NoError(t, err)

	provider.signOutErr = assert.AnError

	require.NoError(t, manager.Logout(context.Background()))
	assert.False(t, manager.IsAuthenticated())
	assert.Equal(t, 2, provider.subscribeCalls, "logout must rebuild the provider subscription")
}

func TestManagerSessionListenerPanicIsIsolated(t *testing.T) {
	provider := newFakeProvider()
	store := memstore.New()
	seedProfile(t, store, "uid-1", featmy.Document{
		"id":     "uid-1",
		"role":   featmy.RolePersonal,
		"status": featmy.UserStatusActive,
	})

	manager := newTestManager(provider, store)
	require.NoError(t, manager.Initialize(context.Background()))

	manager.OnSessionChange(func(featmy.Identity, featmy.Role) {
		panic("listener gone rogue")
	})

	notified := 0
	manager.OnSessionChange(func(identity featmy.Identity, role featmy.Role) {
		notified++
	})

	require.NotPanics(t, func() {
		provider.emit(stubIdentity{uid: "uid-1", email: "coach@featmy.com"})
	})
	assert.Equal(t, 1, notified, "remaining listeners must run after one panics")
}

func TestManagerOnSessionChangeUnsubscribe(t *testing.T) {
	provider := newFakeProvider()
	store := memstore.New()
	seedProfile(t, store, "uid-1", featmy.Document{
		"id":     "uid-1",
		"role":   featmy.RolePersonal,
		"status": featmy.UserStatusActive,
	})

	manager := newTestManager(provider, store)
	require.NoError(t, manager.Initialize(context.Background()))

	calls := 0
	unsubscribe := manager.OnSessionChange(func(featmy.Identity, featmy.Role) {
		calls++
	})

	provider.emit(stubIdentity{uid: "uid-1", email: "coach@featmy.com"})
	require.Equal(t, 1, calls)

	unsubscribe()
	provider.emit(nil)
	assert.Equal(t, 1, calls, "unsubscribed listeners must not be invoked")
}

func TestManagerInitializeHonorsContextCancellation(t *testing.T) {
	provider := newFakeProvider()
	// A subscription that never notifies keeps Initialize pending.
	blocked := &silentProvider{inner: provider}

	manager := newTestManager(blocked, memstore.New())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := manager.Initialize(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestManagerLoginSurfacesStoreFailures(t *testing.T) {
	provider := newFakeProvider()
	provider.register("coach@featmy.com", "secret1", "uid-1")

	store := &MockDocumentStore{}
	store.On("Get", mock.Anything, featmy.CollectionUsers, "uid-1").
		Return(nil, assert.AnError)

	manager := newTestManager(provider, store)
	require.NoError(t, manager.Initialize(context.Background()))

	_, err := manager.Login(context.Background(), "coach@featmy.com", "secret1")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	store.AssertExpectations(t)
}

// silentProvider wraps a provider but swallows the initial subscription
// notification, simulating a provider that never settles.
type silentProvider struct {
	inner *fakeProvider
}

func (s *silentProvider) CreateAccount(ctx context.Context, email, password string) (featmy.Identity, error) {
	return s.inner.CreateAccount(ctx, email, password)
}

func (s *silentProvider) SignIn(ctx context.Context, email, password string) (featmy.Identity, error) {
	return s.inner.SignIn(ctx, email, password)
}

func (s *silentProvider) SignOut(ctx context.Context) error {
	return s.inner.SignOut(ctx)
}

func (s *silentProvider) Subscribe(fn func(featmy.Identity)) func() {
	return func() {}
}
