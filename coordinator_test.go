package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	session "github.com/birbieup/go-session"
)

func TestLoginSuccess(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)
	conn := &fakeConn{}

	coordinator := session.New(provider, dialer, testConfig{})

	principal := &stubPrincipal{id: "user-1", name: "JohnDoe"}

	provider.On("SignInWithCredential", mock.Anything, "JohnDoe@example.com", "hunter22").
		Return(principal, nil)
	provider.On("Token", mock.Anything, principal).Return("tok-1", nil)

	// While the dial is in flight the session must not yet report signed in.
	dialer.On("Dial", mock.Anything, "http://localhost:3001", "tok-1").
		Run(func(args mock.Arguments) {
			assert.False(t, coordinator.SignedIn())
		}).
		Return(conn, nil)

	err := coordinator.Login(context.Background(), "JohnDoe", "hunter22")
	require.NoError(t, err)

	assert.True(t, coordinator.SignedIn())
	assert.True(t, coordinator.Loaded())
	assert.Equal(t, principal, coordinator.Principal())
	assert.Equal(t, conn, coordinator.Connection())

	provider.AssertExpectations(t)
	dialer.AssertExpectations(t)
}

func TestLoginKeepsAlreadyAddressableIdentifier(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)

	coordinator := session.New(provider, dialer, testConfig{})

	principal := &stubPrincipal{id: "user-1"}

	provider.On("SignInWithCredential", mock.Anything, "JohnDoe@example.com", "hunter22").
		Return(principal, nil)
	provider.On("Token", mock.Anything, principal).Return("tok-1", nil)
	dialer.On("Dial", mock.Anything, mock.Anything, "tok-1").Return(&fakeConn{}, nil)

	err := coordinator.Login(context.Background(), "JohnDoe@example.com", "hunter22")
	require.NoError(t, err)

	provider.AssertExpectations(t)
}

func TestLoginInvalidCredential(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)

	coordinator := session.New(provider, dialer, testConfig{})

	provider.On("SignInWithCredential", mock.Anything, "JohnDoe@example.com", "wrongpass").
		Return(nil, &session.ProviderError{Op: "sign-in", Code: "invalid-credential"})

	err := coordinator.Login(context.Background(), "JohnDoe", "wrongpass")
	require.Error(t, err)

	assert.Equal(t, session.KindInvalidCredentials, session.Classify(err))
	assert.False(t, coordinator.SignedIn())
	assert.Nil(t, coordinator.Connection())

	fields := session.Annotate(session.LoginForm(), session.OpLogin, session.Classify(err))
	assert.False(t, fields[0].Faulty)
	assert.True(t, fields[1].Faulty)
	assert.Equal(t, "The combination of username and password is incorrect", fields[1].Error)

	dialer.AssertNotCalled(t, "Dial", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginAccountNotFoundAnnotatesIdentifier(t *testing.T) {
	provider := new(MockProvider)
	coordinator := session.New(provider, new(MockDialer), testConfig{})

	provider.On("SignInWithCredential", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &session.ProviderError{Op: "sign-in", Code: "auth/user-not-found"})

	err := coordinator.Login(context.Background(), "ghost", "whatever")
	require.Error(t, err)
	assert.Equal(t, session.KindAccountNotFound, session.Classify(err))

	// Same message as invalid credentials so account existence is not leaked.
	fields := session.Annotate(session.LoginForm(), session.OpLogin, session.Classify(err))
	assert.True(t, fields[0].Faulty)
	assert.Equal(t, "The combination of username and password is incorrect", fields[0].Error)
	assert.False(t, fields[1].Faulty)
}

func TestLoginEmptyInputDoesNotHitProvider(t *testing.T) {
	provider := new(MockProvider)
	coordinator := session.New(provider, new(MockDialer), testConfig{})

	err := coordinator.Login(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, session.KindInvalidCredentials, session.Classify(err))

	provider.AssertNotCalled(t, "SignInWithCredential", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterSuccess(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)
	conn := &fakeConn{}

	coordinator := session.New(provider, dialer, testConfig{})

	created := &stubPrincipal{id: "user-2"}

	provider.On("CreateAccount", mock.Anything, "John_Doe@example.com", "Str0ngPass!").
		Return(created, nil)
	provider.On("UpdateDisplayName", mock.Anything, created, "John Doe").Return(nil)
	provider.On("SignInWithCredential", mock.Anything, "John_Doe@example.com", "Str0ngPass!").
		Return(created, nil)
	provider.On("Token", mock.Anything, created).Return("tok-2", nil)
	dialer.On("Dial", mock.Anything, mock.Anything, "tok-2").Return(conn, nil)

	err := coordinator.Register(context.Background(), "Str0ngPass!", "John Doe")
	require.NoError(t, err)

	assert.True(t, coordinator.SignedIn())
	assert.Equal(t, conn, coordinator.Connection())
	assert.Equal(t, 0, conn.closeCount())

	provider.AssertExpectations(t)
	dialer.AssertExpectations(t)
}

func TestRegisterWeakSecret(t *testing.T) {
	provider := new(MockProvider)
	coordinator := session.New(provider, new(MockDialer), testConfig{})

	provider.On("CreateAccount", mock.Anything, "JohnDoe@example.com", "weak").
		Return(nil, &session.ProviderError{Op: "create-account", Code: "weak-password"})

	err := coordinator.Register(context.Background(), "weak", "JohnDoe")
	require.Error(t, err)
	assert.Equal(t, session.KindWeakSecret, session.Classify(err))
	assert.False(t, coordinator.SignedIn())

	fields := session.Annotate(session.RegisterForm(), session.OpRegister, session.Classify(err))
	assert.True(t, fields[2].Faulty)
	assert.Equal(t, "Password too weak", fields[2].Error)

	provider.AssertNotCalled(t, "SignInWithCredential", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterDisplayNameFailureDoesNotAbort(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)

	coordinator := session.New(provider, dialer, testConfig{})

	created := &stubPrincipal{id: "user-3"}

	provider.On("CreateAccount", mock.Anything, "JohnDoe@example.com", "Str0ngPass!").
		Return(created, nil)
	provider.On("UpdateDisplayName", mock.Anything, created, "JohnDoe").
		Return(&session.ProviderError{Op: "update-display-name", Code: "internal"})
	provider.On("SignInWithCredential", mock.Anything, "JohnDoe@example.com", "Str0ngPass!").
		Return(created, nil)
	provider.On("Token", mock.Anything, created).Return("tok-3", nil)
	dialer.On("Dial", mock.Anything, mock.Anything, "tok-3").Return(&fakeConn{}, nil)

	err := coordinator.Register(context.Background(), "Str0ngPass!", "JohnDoe")
	require.NoError(t, err)
	assert.True(t, coordinator.SignedIn())
}

func TestSignInAsGuest(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)
	conn := &fakeConn{}

	coordinator := session.New(provider, dialer, testConfig{})

	guest := &stubPrincipal{id: "guest-1", name: "Guest", anonymous: true}

	provider.On("SignInAnonymously", mock.Anything).Return(guest, nil)
	provider.On("Token", mock.Anything, guest).Return("tok-guest", nil)
	dialer.On("Dial", mock.Anything, "http://localhost:3001", "tok-guest").Return(conn, nil)

	err := coordinator.SignInAsGuest(context.Background())
	require.NoError(t, err)

	assert.True(t, coordinator.SignedIn())
	assert.True(t, coordinator.Principal().Anonymous())
	assert.Equal(t, conn, coordinator.Connection())
}

func TestSignInAsGuestFailureIsGeneric(t *testing.T) {
	provider := new(MockProvider)
	coordinator := session.New(provider, new(MockDialer), testConfig{})

	provider.On("SignInAnonymously", mock.Anything).
		Return(nil, &session.ProviderError{Op: "guest-sign-in", Code: "operation-not-allowed"})

	err := coordinator.SignInAsGuest(context.Background())
	require.Error(t, err)
	assert.Equal(t, session.KindUnknown, session.Classify(err))
	assert.False(t, coordinator.SignedIn())
}

func TestLogoutClosesHandleEvenWhenProviderFails(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)
	conn := &fakeConn{}

	coordinator := session.New(provider, dialer, testConfig{})

	principal := &stubPrincipal{id: "user-4"}
	provider.On("SignInWithCredential", mock.Anything, mock.Anything, mock.Anything).
		Return(principal, nil)
	provider.On("Token", mock.Anything, principal).Return("tok-4", nil)
	dialer.On("Dial", mock.Anything, mock.Anything, mock.Anything).Return(conn, nil)

	require.NoError(t, coordinator.Login(context.Background(), "JohnDoe", "hunter22"))
	require.True(t, coordinator.SignedIn())

	provider.On("SignOut", mock.Anything).
		Return(&session.ProviderError{Op: "sign-out", Code: "network-request-failed"})

	err := coordinator.Logout(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, conn.closeCount())
	assert.Nil(t, coordinator.Connection())
	assert.Nil(t, coordinator.Principal())
	assert.False(t, coordinator.SignedIn())
}

func TestLogoutWithoutConnectionIsNoop(t *testing.T) {
	provider := new(MockProvider)
	coordinator := session.New(provider, new(MockDialer), testConfig{})

	provider.On("SignOut", mock.Anything).Return(nil)

	require.NoError(t, coordinator.Logout(context.Background()))
	assert.Nil(t, coordinator.Connection())
}

func TestSupersededLoginDoesNotClobberLaterGuest(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)

	coordinator := session.New(provider, dialer, testConfig{})

	slowPrincipal := &stubPrincipal{id: "user-slow"}
	guest := &stubPrincipal{id: "guest-2", anonymous: true}
	loginConn := &fakeConn{}
	guestConn := &fakeConn{}

	started := make(chan struct{})
	release := make(chan struct{})
	provider.On("SignInWithCredential", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return(slowPrincipal, nil)
	provider.On("SignInAnonymously", mock.Anything).Return(guest, nil)
	provider.On("Token", mock.Anything, slowPrincipal).Return("tok-slow", nil)
	provider.On("Token", mock.Anything, guest).Return("tok-guest", nil)
	dialer.On("Dial", mock.Anything, mock.Anything, "tok-slow").Return(loginConn, nil)
	dialer.On("Dial", mock.Anything, mock.Anything, "tok-guest").Return(guestConn, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = coordinator.Login(context.Background(), "JohnDoe", "hunter22")
	}()

	// Wait for the login attempt to be in flight before the guest sign-in
	// starts, so the guest attempt is the later generation.
	<-started

	require.NoError(t, coordinator.SignInAsGuest(context.Background()))
	require.True(t, coordinator.SignedIn())

	close(release)
	wg.Wait()

	// The later guest attempt won; the stale login result was discarded and
	// its freshly opened handle closed rather than leaked.
	assert.Equal(t, guest, coordinator.Principal())
	assert.Equal(t, guestConn, coordinator.Connection())
	assert.Equal(t, 0, guestConn.closeCount())
	assert.Equal(t, 1, loginConn.closeCount())
	assert.True(t, coordinator.SignedIn())
}

func TestReloginSupersedesExistingHandle(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)

	coordinator := session.New(provider, dialer, testConfig{})

	principal := &stubPrincipal{id: "user-5"}
	first := &fakeConn{}
	second := &fakeConn{}

	provider.On("SignInWithCredential", mock.Anything, mock.Anything, mock.Anything).
		Return(principal, nil)
	provider.On("Token", mock.Anything, principal).Return("tok-5", nil)
	dialer.On("Dial", mock.Anything, mock.Anything, "tok-5").Return(first, nil).Once()
	dialer.On("Dial", mock.Anything, mock.Anything, "tok-5").Return(second, nil).Once()

	require.NoError(t, coordinator.Login(context.Background(), "JohnDoe", "hunter22"))
	require.NoError(t, coordinator.Login(context.Background(), "JohnDoe", "hunter22"))

	// One live handle per session: the first was closed when superseded.
	assert.Equal(t, 1, first.closeCount())
	assert.Equal(t, 0, second.closeCount())
	assert.Equal(t, second, coordinator.Connection())
}

func TestGatesDeriveFromSignedIn(t *testing.T) {
	provider := new(MockProvider)
	dialer := new(MockDialer)

	coordinator := session.New(provider, dialer, testConfig{})

	assert.False(t, coordinator.Authenticated())
	assert.True(t, coordinator.NotAuthenticated())

	principal := &stubPrincipal{id: "user-6"}
	provider.On("SignInWithCredential", mock.Anything, mock.Anything, mock.Anything).
		Return(principal, nil)
	provider.On("Token", mock.Anything, principal).Return("tok-6", nil)
	dialer.On("Dial", mock.Anything, mock.Anything, mock.Anything).Return(&fakeConn{}, nil)

	require.NoError(t, coordinator.Login(context.Background(), "JohnDoe", "hunter22"))

	assert.True(t, coordinator.Authenticated())
	assert.False(t, coordinator.NotAuthenticated())
}
