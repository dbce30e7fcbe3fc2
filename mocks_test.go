package featmy_test

import (
	"context"
	"sync"

	featmy "github.com/AFJoao/FEATMY-V2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/mock"
)

// MockDocumentStore implements featmy.DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, key string) (featmy.Document, error) {
	args := m.Called(ctx, collection, key)
	if doc := args.Get(0); doc != nil {
		return doc.(featmy.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentStore) Set(ctx context.Context, collection, key string, doc featmy.Document) error {
	args := m.Called(ctx, collection, key, doc)
	return args.Error(0)
}

func (m *MockDocumentStore) Update(ctx context.Context, collection, key string, fields featmy.Document) error {
	args := m.Called(ctx, collection, key, fields)
	return args.Error(0)
}

func (m *MockDocumentStore) Delete(ctx context.Context, collection, key string) error {
	args := m.Called(ctx, collection, key)
	return args.Error(0)
}

func (m *MockDocumentStore) Query(ctx context.Context, collection string, filters featmy.Document) ([]featmy.Document, error) {
	args := m.Called(ctx, collection, filters)
	if docs := args.Get(0); docs != nil {
		return docs.([]featmy.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocumentStore) AppendToArray(ctx context.Context, collection, key, field string, value any) error {
	args := m.Called(ctx, collection, key, field, value)
	return args.Error(0)
}

func (m *MockDocumentStore) RemoveFromArray(ctx context.Context, collection, key, field string, value any) error {
	args := m.Called(ctx, collection, key, field, value)
	return args.Error(0)
}

// stubIdentity implements featmy.Identity
type stubIdentity struct {
	uid   string
	email string
}

func (s stubIdentity) ID() string    { return s.uid }
func (s stubIdentity) Email() string { return s.email }

// fakeProvider is a stateful featmy.IdentityProvider. The subscription
// contract (synchronous current-state delivery, notification on every
// sign-in and sign-out) needs real state, so this is a fake rather than a
// testify mock.
type fakeProvider struct {
	mu        sync.Mutex
	current   featmy.Identity
	listeners map[int]func(featmy.Identity)
	next      int

	accounts map[string]string // email -> password
	uids     map[string]string // email -> uid
	disabled map[string]bool   // uid -> provider-level disabled flag

	createErr  error
	signInErr  error
	signOutErr error

	subscribeCalls int
	signInCalls    int
	signOutCalls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		listeners: map[int]func(featmy.Identity){},
		accounts:  map[string]string{},
		uids:      map[string]string{},
		disabled:  map[string]bool{},
	}
}

func (p *fakeProvider) register(email, password, uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email] = password
	p.uids[email] = uid
}

func (p *fakeProvider) CreateAccount(ctx context.Context, email, password string) (featmy.Identity, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}

	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, goerrors.New("email already registered", goerrors.CategoryConflict).
			WithTextCode(featmy.TextCodeEmailInUse)
	}
	uid := "uid-" + email
	p.accounts[email] = password
	p.uids[email] = uid
	p.mu.Unlock()

	return p.adopt(stubIdentity{uid: uid, email: email}), nil
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (featmy.Identity, error) {
	p.mu.Lock()
	p.signInCalls++
	p.mu.Unlock()

	if p.signInErr != nil {
		return nil, p.signInErr
	}

	p.mu.Lock()
	stored, exists := p.accounts[email]
	uid := p.uids[email]
	p.mu.Unlock()

	if !exists {
		return nil, goerrors.New("no account for this email", goerrors.CategoryAuth).
			WithTextCode(featmy.TextCodeUserNotFound)
	}
	if stored != password {
		return nil, goerrors.New("credentials rejected", goerrors.CategoryAuth).
			WithTextCode(featmy.TextCodeWrongPassword)
	}

	return p.adopt(stubIdentity{uid: uid, email: email}), nil
}

// SignOut always clears the local signed-in state; signOutErr models a
// failed acknowledgement after the local state was already dropped.
func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOutCalls++
	err := p.signOutErr
	p.mu.Unlock()

	p.emit(nil)
	return err
}

func (p *fakeProvider) Subscribe(fn func(featmy.Identity)) func() {
	p.mu.Lock()
	p.subscribeCalls++
	id := p.next
	p.next++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled[uid] = disabled
	return nil
}

// emit simulates an identity change originating at the provider.
func (p *fakeProvider) emit(identity featmy.Identity) {
	p.mu.Lock()
	p.current = identity
	listeners := make([]func(featmy.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(identity)
	}
}

func (p *fakeProvider) adopt(identity featmy.Identity) featmy.Identity {
	p.emit(identity)
	return identity
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []featmy.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event featmy.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byType(eventType featmy.ActivityEventType) []featmy.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []featmy.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
