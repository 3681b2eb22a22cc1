package session

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

// Principal is the identity record the provider resolved for the current
// session. Implementations are owned by the provider; the coordinator only
// caches a reference and replaces it wholesale on every state change.
type Principal interface {
	ID() string
	DisplayName() string
	Anonymous() bool
}

// IdentityProvider is the boundary to whatever backs authentication. Every
// method is a single round trip; failures should carry a provider code via
// ProviderError so they can be classified.
type IdentityProvider interface {
	SignInWithCredential(ctx context.Context, identifier, secret string) (Principal, error)
	CreateAccount(ctx context.Context, identifier, secret string) (Principal, error)
	SignInAnonymously(ctx context.Context) (Principal, error)
	SignOut(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, principal Principal, displayName string) error
	Token(ctx context.Context, principal Principal) (string, error)

	// OnPrincipalChanged registers a continuous listener for principal state
	// changes. Implementations notify the listener with the current principal
	// (possibly nil) on subscription, then on every subsequent change. The
	// returned func releases the subscription.
	OnPrincipalChanged(listener func(Principal)) (func(), error)
}

// Dialer establishes the real-time connection for a session. The token is a
// bearer credential applied at connection-establishment time only.
type Dialer interface {
	Dial(ctx context.Context, endpoint, bearerToken string) (Conn, error)
}

// Conn is a live real-time connection carrying named messages.
type Conn interface {
	On(event string, handler func(payload []byte))
	Emit(event string, payload any) error
	Close() error
}

// Router receives navigation requests, e.g. the redirect to the login view
// issued when the provider resolves no principal on a protected view.
type Router interface {
	CurrentPath() string
	Push(path string) error
}

// Config holds session options
type Config interface {
	GetEndpointURL() string
	GetNamespaceSuffix() string
	GetLoginPath() string
	GetPublicPaths() []string
	GetFillerRune() rune
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
