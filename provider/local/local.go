// Package local implements the session.IdentityProvider boundary with an
// in-process account store. It is meant for development, tests, and
// self-hosted deployments that do not want to depend on an external identity
// service: accounts live in a bun-managed SQLite table, secrets are bcrypt
// hashed, and tokens are short-lived HS256 JWTs.
package local

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	session "github.com/birbieup/go-session"
)

// Provider error codes, matching the normalizer's table in the root package.
const (
	CodeInvalidCredential = "invalid-credential"
	CodeUserNotFound      = "user-not-found"
	CodeWeakPassword      = "weak-password"
	CodeIdentifierInUse   = "email-already-in-use"
	CodeInvalidIdentifier = "invalid-email"
	CodeTooManyRequests   = "too-many-requests"
)

// Config holds provider options.
type Config struct {
	// SigningKey signs minted tokens. Required.
	SigningKey []byte

	// TokenTTL bounds token lifetime. Defaults to an hour.
	TokenTTL time.Duration

	Issuer   string
	Audience []string

	// MinSecretLength below which CreateAccount rejects with weak-password.
	// Defaults to 6.
	MinSecretLength int

	// BcryptCost for password hashing. Defaults to bcrypt.DefaultCost.
	BcryptCost int

	// AttemptsPerMinute throttles credential attempts per identifier before
	// too-many-requests is returned. Defaults to 10.
	AttemptsPerMinute int
}

func (c Config) withDefaults() Config {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.MinSecretLength <= 0 {
		c.MinSecretLength = 6
	}
	if c.BcryptCost <= 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.AttemptsPerMinute <= 0 {
		c.AttemptsPerMinute = 10
	}
	return c
}

// Provider is an in-process identity provider. It tracks the currently
// signed-in principal and feeds changes to subscribed listeners, mirroring
// the continuous state feed of hosted identity services.
type Provider struct {
	store  *Store
	cfg    Config
	minter tokenMinter
	logger session.Logger

	mu        sync.Mutex
	current   session.Principal
	listeners map[int]func(session.Principal)
	nextID    int
	limiters  map[string]*rate.Limiter
}

var _ session.IdentityProvider = (*Provider)(nil)

// New returns a Provider backed by db. It creates the accounts table when
// missing.
func New(ctx context.Context, db *bun.DB, cfg Config) (*Provider, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("local: signing key is required")
	}

	cfg = cfg.withDefaults()

	store := NewStore(db)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	return &Provider{
		store: store,
		cfg:   cfg,
		minter: tokenMinter{
			signingKey: cfg.SigningKey,
			ttl:        cfg.TokenTTL,
			issuer:     cfg.Issuer,
			audience:   cfg.Audience,
		},
		listeners: map[int]func(session.Principal){},
		limiters:  map[string]*rate.Limiter{},
	}, nil
}

// WithLogger sets the logger used for listener and tracking failures.
func (p *Provider) WithLogger(logger session.Logger) *Provider {
	p.logger = logger
	return p
}

// SignInWithCredential verifies the identifier/secret pair. Attempts are
// throttled per identifier; failures carry provider codes the session core
// classifies.
func (p *Provider) SignInWithCredential(ctx context.Context, identifier, secret string) (session.Principal, error) {
	if !p.allowAttempt(identifier) {
		return nil, providerError("sign-in", CodeTooManyRequests, nil)
	}

	account, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, providerError("sign-in", CodeUserNotFound, err)
		}
		return nil, providerError("sign-in", "", err)
	}

	if err := p.store.TrackAttemptedLogin(ctx, account.ID); err != nil {
		p.warn("unable to track attempted login: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(secret)); err != nil {
		return nil, providerError("sign-in", CodeInvalidCredential, err)
	}

	if err := p.store.TrackSuccessfulLogin(ctx, account.ID); err != nil {
		p.warn("unable to track successful login: %v", err)
	}

	principal := principalFromAccount(account)
	p.setCurrent(principal)

	return principal, nil
}

// CreateAccount registers a new identity. The identifier must be addressable
// (mailbox form) and the secret must meet the minimum length; duplicates are
// rejected. Creating an account does not sign it in.
func (p *Provider) CreateAccount(ctx context.Context, identifier, secret string) (session.Principal, error) {
	if _, err := mail.ParseAddress(identifier); err != nil {
		return nil, providerError("create-account", CodeInvalidIdentifier, err)
	}

	if len([]rune(secret)) < p.cfg.MinSecretLength {
		return nil, providerError("create-account", CodeWeakPassword, nil)
	}

	if _, err := p.store.GetByIdentifier(ctx, identifier); err == nil {
		return nil, providerError("create-account", CodeIdentifierInUse, nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, providerError("create-account", "", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), p.cfg.BcryptCost)
	if err != nil {
		return nil, providerError("create-account", "", err)
	}

	account, err := p.store.Insert(ctx, &Account{
		Identifier:   identifier,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, providerError("create-account", "", err)
	}

	return principalFromAccount(account), nil
}

// SignInAnonymously creates a throwaway guest account and signs it in. Guest
// accounts have a generated identifier and an unguessable password hash.
func (p *Provider) SignInAnonymously(ctx context.Context) (session.Principal, error) {
	id := uuid.New()

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), p.cfg.BcryptCost)
	if err != nil {
		return nil, providerError("guest-sign-in", "", err)
	}

	account, err := p.store.Insert(ctx, &Account{
		ID:           id,
		Identifier:   "guest-" + id.String(),
		DisplayName:  "Guest",
		PasswordHash: string(hash),
		Anonymous:    true,
	})
	if err != nil {
		return nil, providerError("guest-sign-in", "", err)
	}

	principal := principalFromAccount(account)
	p.setCurrent(principal)

	return principal, nil
}

// SignOut clears the current principal and notifies listeners.
func (p *Provider) SignOut(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

// UpdateDisplayName assigns the human-readable name for a principal.
func (p *Provider) UpdateDisplayName(ctx context.Context, principal session.Principal, displayName string) error {
	id, err := uuid.Parse(principal.ID())
	if err != nil {
		return providerError("update-display-name", "", err)
	}

	if err := p.store.UpdateDisplayName(ctx, id, displayName); err != nil {
		return providerError("update-display-name", "", err)
	}

	return nil
}

// Token mints a short-lived bearer token for the principal.
func (p *Provider) Token(ctx context.Context, principal session.Principal) (string, error) {
	return p.minter.mint(principal)
}

// OnPrincipalChanged subscribes to the principal feed. The listener is
// notified with the current principal immediately, then on every sign-in and
// sign-out, until the returned func is called.
func (p *Provider) OnPrincipalChanged(listener func(session.Principal)) (func(), error) {
	if listener == nil {
		return nil, errors.New("local: listener is required")
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	current := p.current
	p.mu.Unlock()

	listener(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}, nil
}

func (p *Provider) setCurrent(principal session.Principal) {
	p.mu.Lock()
	p.current = principal
	listeners := make([]func(session.Principal), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(principal)
	}
}

func (p *Provider) allowAttempt(identifier string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalizeKey(identifier)
	limiter, ok := p.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.cfg.AttemptsPerMinute)), p.cfg.AttemptsPerMinute)
		p.limiters[key] = limiter
	}

	return limiter.Allow()
}

func (p *Provider) warn(format string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(format, args...)
	}
}

func providerError(op, code string, err error) *session.ProviderError {
	return &session.ProviderError{Op: op, Code: code, Err: err}
}

// principal implements session.Principal for local accounts.
type principal struct {
	id          string
	displayName string
	anonymous   bool
}

func (p *principal) ID() string          { return p.id }
func (p *principal) DisplayName() string { return p.displayName }
func (p *principal) Anonymous() bool     { return p.anonymous }

func principalFromAccount(account *Account) session.Principal {
	return &principal{
		id:          account.ID.String(),
		displayName: account.DisplayName,
		anonymous:   account.Anonymous,
	}
}
