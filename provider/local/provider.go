package local

import (
	"context"
	"sync"
	"time"

	featmy "github.com/AFJoao/FEATMY-V2"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxSignInAttempts is the number of failed sign-ins tolerated per email
// before the cooldown applies.
var MaxSignInAttempts = 5

// SignInCooldown is the window during which further attempts are rejected
// once MaxSignInAttempts is exceeded.
var SignInCooldown = 15 * time.Minute

// MinPasswordLength mirrors the hosted provider's weak-password rule.
const MinPasswordLength = 6

var errEmailInUse = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(featmy.TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

var errWeakPassword = goerrors.New("password is too short", goerrors.CategoryValidation).
	WithTextCode(featmy.TextCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

var errInvalidEmail = goerrors.New("invalid email address", goerrors.CategoryValidation).
	WithTextCode(featmy.TextCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

var errUserNotFound = goerrors.New("no account for this email", goerrors.CategoryAuth).
	WithTextCode(featmy.TextCodeUserNotFound).
	WithCode(goerrors.CodeUnauthorized)

var errWrongPassword = goerrors.New("credentials rejected", goerrors.CategoryAuth).
	WithTextCode(featmy.TextCodeWrongPassword).
	WithCode(goerrors.CodeUnauthorized)

var errTooManyRequests = goerrors.New("too many sign-in attempts", goerrors.CategoryAuth).
	WithTextCode(featmy.TextCodeTooManyRequests).
	WithCode(goerrors.CodeUnauthorized)

var errUserDisabled = goerrors.New("account is disabled", goerrors.CategoryAuth).
	WithTextCode(featmy.TextCodeUserDisabled).
	WithCode(goerrors.CodeUnauthorized)

type accountRecord struct {
	UID          string     `json:"uid"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Disabled     bool       `json:"disabled,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

type attemptState struct {
	count int
	last  time.Time
}

// Provider implements featmy.IdentityProvider. Accounts live in the
// authAccounts collection of the injected DocumentStore; the signed-in state
// is process-local, like the hosted SDK's client connection.
type Provider struct {
	mu         sync.Mutex
	store      featmy.DocumentStore
	signingKey []byte
	tokenTTL   time.Duration
	logger     featmy.Logger
	clock      func() time.Time

	current      *localIdentity
	listeners    map[int]func(featmy.Identity)
	nextListener int
	attempts     map[string]attemptState
}

var _ featmy.IdentityProvider = (*Provider)(nil)

// NewProvider returns a Provider signing ID tokens with the given key.
func NewProvider(store featmy.DocumentStore, signingKey []byte) *Provider {
	return &Provider{
		store:      store,
		signingKey: signingKey,
		tokenTTL:   24 * time.Hour,
		logger:     noopLogger{},
		clock:      time.Now,
		listeners:  map[int]func(featmy.Identity){},
		attempts:   map[string]attemptState{},
	}
}

func (p *Provider) WithLogger(logger featmy.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithTokenTTL overrides the ID token lifetime.
func (p *Provider) WithTokenTTL(ttl time.Duration) *Provider {
	if ttl > 0 {
		p.tokenTTL = ttl
	}
	return p
}

// WithClock injects a custom clock (useful for tests).
func (p *Provider) WithClock(clock func() time.Time) *Provider {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// CreateAccount registers new credentials and signs the new identity in.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (featmy.Identity, error) {
	normalized := featmy.NormalizeEmail(email)

	if err := validation.Validate(normalized, validation.Required, is.Email); err != nil {
		return nil, errInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, errWeakPassword
	}

	existing, err := p.store.Query(ctx, featmy.CollectionAuthAccounts, featmy.Document{"email": normalized})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing accounts")
	}
	if len(existing) > 0 {
		return nil, errEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	uid := accountUID(normalized)
	now := p.clock()
	record := accountRecord{
		UID:          uid,
		Email:        normalized,
		PasswordHash: string(hash),
		CreatedAt:    &now,
	}

	doc, err := encodeAccount(record)
	if err != nil {
		return nil, err
	}
	if err := p.store.Set(ctx, featmy.CollectionAuthAccounts, uid, doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist account")
	}

	return p.adopt(record)
}

// SignIn verifies credentials and adopts the identity as current.
func (p *Provider) SignIn(ctx context.Context, email, password string) (featmy.Identity, error) {
	normalized := featmy.NormalizeEmail(email)

	if err := p.checkThrottle(normalized); err != nil {
		return nil, err
	}

	record, err := p.findAccount(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if record.Disabled {
		return nil, errUserDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		p.trackAttempt(normalized)
		p.logger.Warn("sign-in rejected for %s: bad password", normalized)
		return nil, errWrongPassword
	}

	p.clearAttempts(normalized)

	return p.adopt(*record)
}

// SignOut clears the current identity and notifies subscribers.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
	return nil
}

// Subscribe registers an identity-change listener and synchronously delivers
// the current state, so new subscribers always observe a definitive snapshot.
func (p *Provider) Subscribe(fn func(featmy.Identity)) func() {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	if current != nil {
		fn(current)
	} else {
		fn(nil)
	}

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// CurrentIdentity returns the signed-in identity, or nil.
func (p *Provider) CurrentIdentity() featmy.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current
}

// SetDisabled toggles the provider-level disabled flag on an account.
func (p *Provider) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	return p.store.Update(ctx, featmy.CollectionAuthAccounts, uid, featmy.Document{"disabled": disabled})
}

func (p *Provider) adopt(record accountRecord) (featmy.Identity, error) {
	token, err := p.mintToken(record)
	if err != nil {
		return nil, err
	}

	identity := &localIdentity{uid: record.UID, email: record.Email, token: token}
	p.logger.Debug("identity adopted: %s", record.UID)

	p.mu.Lock()
	p.current = identity
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(identity)
	}

	return identity, nil
}

func (p *Provider) snapshotListeners() []func(featmy.Identity) {
	out := make([]func(featmy.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		out = append(out, fn)
	}
	return out
}

func (p *Provider) findAccount(ctx context.Context, email string) (*accountRecord, error) {
	docs, err := p.store.Query(ctx, featmy.CollectionAuthAccounts, featmy.Document{"email": email})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}
	if len(docs) == 0 {
		return nil, errUserNotFound
	}

	record, err := decodeAccount(docs[0])
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (p *Provider) checkThrottle(email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.attempts[email]
	if !ok || st.count < MaxSignInAttempts {
		return nil
	}
	if p.clock().Sub(st.last) >= SignInCooldown {
		delete(p.attempts, email)
		return nil
	}
	return errTooManyRequests
}

func (p *Provider) trackAttempt(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.attempts[email]
	st.count++
	st.last = p.clock()
	p.attempts[email] = st
}

func (p *Provider) clearAttempts(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, email)
}

// accountUID derives a stable account id from the normalized email, so a
// crashed-and-retried account creation converges on the same identity.
func accountUID(email string) string {
	if id, err := hashid.NewUUID(email); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

type localIdentity struct {
	uid   string
	email string
	token string
}

var _ featmy.Identity = (*localIdentity)(nil)

func (i *localIdentity) ID() string {
	return i.uid
}

func (i *localIdentity) Email() string {
	return i.email
}

// IDToken returns the signed token minted for this session.
func (i *localIdentity) IDToken() string {
	return i.token
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
