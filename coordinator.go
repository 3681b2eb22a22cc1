package session

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Coordinator owns the client-side session: it converts identity-provider
// state into session state, keeps exactly one real-time connection open while
// signed in, and exposes the credential operations consumed by UI forms.
// Construct one instance at application-root scope and share it by reference.
type Coordinator struct {
	provider IdentityProvider
	dialer   Dialer
	router   Router
	cfg      Config
	logger   Logger
	sink     ActivitySink

	mu sync.Mutex
	// attempt is the generation counter guarding session mutations: every
	// operation captures a generation at start and only the latest settled
	// attempt commits, so a delayed stale resolution cannot resurrect old
	// state.
	attempt     uint64
	principal   Principal
	conn        Conn
	signedIn    bool
	loaded      bool
	resolved    bool
	unsubscribe func()
}

// New returns a Coordinator wired to the given provider and dialer. Router,
// logger, and activity sink are optional and injected with the WithX methods.
func New(provider IdentityProvider, dialer Dialer, cfg Config) *Coordinator {
	return &Coordinator{
		provider: provider,
		dialer:   dialer,
		cfg:      cfg,
		logger:   defLogger{},
		sink:     noopActivitySink{},
	}
}

func (c *Coordinator) WithLogger(logger Logger) *Coordinator {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithRouter enables the redirect-to-login behavior of the session observer.
// Without a router, unauthenticated resolutions only mark the session loaded.
func (c *Coordinator) WithRouter(router Router) *Coordinator {
	c.router = router
	return c
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (c *Coordinator) WithActivitySink(sink ActivitySink) *Coordinator {
	c.sink = normalizeActivitySink(sink)
	return c
}

// Principal returns the currently cached principal, nil when signed out.
func (c *Coordinator) Principal() Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

// Connection returns the live connection handle, nil when none is open.
// The handle is read-only for consumers; only the coordinator opens/closes it.
func (c *Coordinator) Connection() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Coordinator) SignedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signedIn
}

// Loaded reports whether the first principal resolution has completed. It
// latches true once and never reverts.
func (c *Coordinator) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Authenticated gates content that should render only for signed-in
// sessions. Pure derivation of SignedIn.
func (c *Coordinator) Authenticated() bool {
	return c.SignedIn()
}

// NotAuthenticated gates content that should render only for signed-out
// sessions. Pure derivation of SignedIn.
func (c *Coordinator) NotAuthenticated() bool {
	return !c.SignedIn()
}

// Login authenticates the identifier/secret pair, binds the real-time
// connection with a fresh token, and marks the session signed in. The
// identifier is normalized into addressable form unless it already carries
// the namespace suffix. On failure the session state is left untouched and
// the returned error classifies into the ErrorKind taxonomy.
func (c *Coordinator) Login(ctx context.Context, identifier, secret string) error {
	if err := validateLogin(identifier, secret); err != nil {
		return err
	}

	gen := c.beginAttempt()

	addressable := NormalizeIdentifier(identifier, c.cfg.GetNamespaceSuffix(), c.cfg.GetFillerRune())

	principal, err := c.provider.SignInWithCredential(ctx, addressable, secret)
	if err != nil {
		classified := classifyProvider(err)
		c.record(ctx, ActivityEventLoginFailure, "", map[string]any{
			"identifier": addressable,
			"kind":       string(Classify(classified)),
		})
		return classified
	}

	if err := c.establish(ctx, gen, principal); err != nil {
		c.record(ctx, ActivityEventLoginFailure, principal.ID(), map[string]any{
			"identifier": addressable,
			"kind":       string(Classify(err)),
		})
		return err
	}

	c.record(ctx, ActivityEventLoginSuccess, principal.ID(), map[string]any{
		"identifier": addressable,
	})

	return nil
}

// Register creates an account for an identifier derived from the display
// name, best-effort assigns the display name, then performs the same login
// flow a returning user would to converge on identical signed-in state.
// A created account is not rolled back when a later step fails.
func (c *Coordinator) Register(ctx context.Context, secret, displayName string) error {
	if err := validateRegister(displayName, secret); err != nil {
		return err
	}

	identifier := DeriveIdentifier(displayName, c.cfg.GetNamespaceSuffix(), c.cfg.GetFillerRune())

	principal, err := c.provider.CreateAccount(ctx, identifier, secret)
	if err != nil {
		classified := classifyProvider(err)
		c.record(ctx, ActivityEventRegisterFailure, "", map[string]any{
			"identifier": identifier,
			"kind":       string(Classify(classified)),
		})
		return classified
	}

	// Display name assignment must not abort registration.
	if err := c.provider.UpdateDisplayName(ctx, principal, displayName); err != nil {
		c.logger.Warn("unable to update display name for %s: %v", identifier, err)
	}

	if err := c.Login(ctx, identifier, secret); err != nil {
		c.record(ctx, ActivityEventRegisterFailure, principal.ID(), map[string]any{
			"identifier": identifier,
			"kind":       string(Classify(err)),
			"stage":      "chained_login",
		})
		return err
	}

	c.record(ctx, ActivityEventRegisterSuccess, principal.ID(), map[string]any{
		"identifier": identifier,
	})

	return nil
}

// SignInAsGuest requests an anonymous principal and binds the connection with
// its token. There are no credentials to correct, so any failure surfaces as
// a generic one.
func (c *Coordinator) SignInAsGuest(ctx context.Context) error {
	gen := c.beginAttempt()

	principal, err := c.provider.SignInAnonymously(ctx)
	if err != nil {
		generic := withSource(ErrUnknown, err)
		c.record(ctx, ActivityEventGuestFailure, "", map[string]any{
			"error": err.Error(),
		})
		return generic
	}

	if err := c.establish(ctx, gen, principal); err != nil {
		c.record(ctx, ActivityEventGuestFailure, principal.ID(), nil)
		return err
	}

	c.record(ctx, ActivityEventGuestSuccess, principal.ID(), nil)

	return nil
}

// Logout releases the connection handle and clears the session state, then
// signs out at the provider. The local teardown happens regardless of the
// provider response; only the provider failure is surfaced.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.beginAttempt()

	c.mu.Lock()
	principalID := ""
	if c.principal != nil {
		principalID = c.principal.ID()
	}
	conn := c.conn
	c.conn = nil
	c.principal = nil
	c.signedIn = false
	c.mu.Unlock()

	c.closeHandle(ctx, conn)

	err := c.provider.SignOut(ctx)

	c.record(ctx, ActivityEventLogout, principalID, nil)

	if err != nil {
		return classifyProvider(err)
	}
	return nil
}

// establish runs the shared tail of every sign-in path: fetch a token for the
// principal, dial the transport, and commit the new session state if this
// attempt is still the latest.
func (c *Coordinator) establish(ctx context.Context, gen uint64, principal Principal) error {
	token, err := c.provider.Token(ctx, principal)
	if err != nil {
		return classifyProvider(err)
	}

	conn, err := c.dialer.Dial(ctx, c.cfg.GetEndpointURL(), token)
	if err != nil {
		return withSource(ErrUnknown, err)
	}

	if !c.commit(gen, principal, conn) {
		// Superseded by a newer attempt; the freshly opened handle must not
		// leak and the newer state must not be disturbed.
		c.closeHandle(ctx, conn)
		c.logger.Debug("sign-in attempt %d superseded, discarding result", gen)
		return nil
	}

	c.record(ctx, ActivityEventConnectionOpened, principal.ID(), nil)

	return nil
}

// commit installs the principal and connection for gen. It returns false when
// a newer attempt already started, in which case nothing is mutated. An
// existing handle is superseded, never leaked.
func (c *Coordinator) commit(gen uint64, principal Principal, conn Conn) bool {
	c.mu.Lock()

	if gen != c.attempt {
		c.mu.Unlock()
		return false
	}

	old := c.conn
	c.conn = conn
	c.principal = principal
	c.signedIn = true
	c.loaded = true
	c.mu.Unlock()

	if old != nil {
		c.closeHandle(context.Background(), old)
	}

	return true
}

func (c *Coordinator) beginAttempt() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	return c.attempt
}

func (c *Coordinator) closeHandle(ctx context.Context, conn Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		c.logger.Warn("error closing connection handle: %v", err)
	}
	c.record(ctx, ActivityEventConnectionClosed, "", nil)
}

func (c *Coordinator) record(ctx context.Context, eventType ActivityEventType, principalID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		Metadata:    metadata,
		OccurredAt:  time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	sink := normalizeActivitySink(c.sink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

func validateLogin(identifier, secret string) error {
	if err := validation.Validate(identifier, validation.Required); err != nil {
		return withSource(ErrInvalidCredentials, err)
	}
	if err := validation.Validate(secret, validation.Required); err != nil {
		return withSource(ErrInvalidCredentials, err)
	}
	return nil
}

func validateRegister(displayName, secret string) error {
	if err := validation.Validate(displayName, validation.Required); err != nil {
		return withSource(ErrInvalidIdentifier, err)
	}
	if err := validation.Validate(secret, validation.Required); err != nil {
		return withSource(ErrWeakSecret, err)
	}
	return nil
}

func withSource(base *goerrors.Error, source error) error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	clone.Source = source
	return clone
}
