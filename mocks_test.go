package session_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	session "github.com/birbieup/go-session"
)

// MockProvider implements session.IdentityProvider
type MockProvider struct {
	mock.Mock

	mu       sync.Mutex
	listener func(session.Principal)
}

func (m *MockProvider) SignInWithCredential(ctx context.Context, identifier, secret string) (session.Principal, error) {
	args := m.Called(ctx, identifier, secret)
	principal, _ := args.Get(0).(session.Principal)
	return principal, args.Error(1)
}

func (m *MockProvider) CreateAccount(ctx context.Context, identifier, secret string) (session.Principal, error) {
	args := m.Called(ctx, identifier, secret)
	principal, _ := args.Get(0).(session.Principal)
	return principal, args.Error(1)
}

func (m *MockProvider) SignInAnonymously(ctx context.Context) (session.Principal, error) {
	args := m.Called(ctx)
	principal, _ := args.Get(0).(session.Principal)
	return principal, args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) UpdateDisplayName(ctx context.Context, principal session.Principal, displayName string) error {
	args := m.Called(ctx, principal, displayName)
	return args.Error(0)
}

func (m *MockProvider) Token(ctx context.Context, principal session.Principal) (string, error) {
	args := m.Called(ctx, principal)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) OnPrincipalChanged(listener func(session.Principal)) (func(), error) {
	args := m.Called(listener)
	m.mu.Lock()
	m.listener = listener
	m.mu.Unlock()
	unsubscribe, _ := args.Get(0).(func())
	return unsubscribe, args.Error(1)
}

// EmitPrincipal drives the captured feed listener, simulating a provider
// state change.
func (m *MockProvider) EmitPrincipal(principal session.Principal) {
	m.mu.Lock()
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener(principal)
	}
}

// MockDialer implements session.Dialer
type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context, endpoint, bearerToken string) (session.Conn, error) {
	args := m.Called(ctx, endpoint, bearerToken)
	conn, _ := args.Get(0).(session.Conn)
	return conn, args.Error(1)
}

// MockRouter implements session.Router
type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) CurrentPath() string {
	return m.Called().String(0)
}

func (m *MockRouter) Push(path string) error {
	return m.Called(path).Error(0)
}

// fakeConn is a controllable stand-in for a live connection handle.
type fakeConn struct {
	mu     sync.Mutex
	closed int
}

func (c *fakeConn) On(event string, handler func([]byte)) {}

func (c *fakeConn) Emit(event string, payload any) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// stubPrincipal implements session.Principal
type stubPrincipal struct {
	id        string
	name      string
	anonymous bool
}

func (p *stubPrincipal) ID() string          { return p.id }
func (p *stubPrincipal) DisplayName() string { return p.name }
func (p *stubPrincipal) Anonymous() bool     { return p.anonymous }

// testConfig implements session.Config with the defaults tests rely on.
type testConfig struct{}

func (testConfig) GetEndpointURL() string     { return "http://localhost:3001" }
func (testConfig) GetNamespaceSuffix() string { return "example.com" }
func (testConfig) GetLoginPath() string       { return "/login" }
func (testConfig) GetPublicPaths() []string   { return []string{"/login", "/register"} }
func (testConfig) GetFillerRune() rune        { return '_' }
