package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]domain.User)}
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUsers) GetByUID(_ context.Context, uid string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.UID == uid {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (m *memoryUsers) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return domain.ErrUserExists
	}
	m.users[user.Email] = user
	return nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBackend(t *testing.T) (*LocalBackend, *stepClock) {
	t.Helper()
	clock := &stepClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	backend := NewLocalBackend(newMemoryUsers(), LocalOptions{BcryptCost: bcrypt.MinCost, Clock: clock}, nil)
	return backend, clock
}

func authCode(t *testing.T, err error) domain.AuthErrorCode {
	t.Helper()
	var authErr *domain.AuthError
	require.True(t, errors.As(err, &authErr), "expected *domain.AuthError, got %v", err)
	return authErr.Code
}

func TestLocalSignUpThenSignInFromAnotherSession(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend(t)
	ctx := context.Background()

	created, err := backend.Session(nil).SignUp(ctx, " New@X.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", created.Email)
	assert.Equal(t, "new", created.DisplayName)
	assert.NotEmpty(t, created.UID)

	signedIn, err := backend.Session(nil).SignIn(ctx, "new@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created, signedIn)
}

func TestLocalSignUpErrors(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend(t)
	ctx := context.Background()
	_, err := backend.Session(nil).SignUp(ctx, "taken@x.com", "secret1")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		email    string
		password string
		want     domain.AuthErrorCode
	}{
		{name: "invalid email", email: "not-an-email", password: "secret1", want: domain.AuthInvalidEmail},
		{name: "weak password", email: "weak@x.com", password: "12345", want: domain.AuthWeakPassword},
		{name: "email in use", email: "TAKEN@x.com", password: "secret1", want: domain.AuthEmailAlreadyInUse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := backend.Session(nil).SignUp(ctx, tc.email, tc.password)
			require.Error(t, err)
			assert.Equal(t, tc.want, authCode(t, err))
		})
	}
}

func TestLocalSignInErrors(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend(t)
	ctx := context.Background()
	_, err := backend.Session(nil).SignUp(ctx, "user@x.com", "secret1")
	require.NoError(t, err)

	_, err = backend.Session(nil).SignIn(ctx, "missing@x.com", "secret1")
	assert.Equal(t, domain.AuthUserNotFound, authCode(t, err))

	_, err = backend.Session(nil).SignIn(ctx, "user@x.com", "wrong-password")
	assert.Equal(t, domain.AuthWrongPassword, authCode(t, err))
	assert.Equal(t, "Invalid email or password", domain.UserMessage(err))
}

func TestLocalSignInThrottlesRepeatedFailures(t *testing.T) {
	t.Parallel()

	backend, clock := newTestBackend(t)
	ctx := context.Background()
	_, err := backend.Session(nil).SignUp(ctx, "user@x.com", "secret1")
	require.NoError(t, err)

	for range DefaultMaxFailures {
		_, err := backend.Session(nil).SignIn(ctx, "user@x.com", "nope-nope")
		require.Equal(t, domain.AuthWrongPassword, authCode(t, err))
	}

	_, err = backend.Session(nil).SignIn(ctx, "user@x.com", "secret1")
	assert.Equal(t, domain.AuthTooManyRequests, authCode(t, err))

	clock.advance(DefaultFailureWindow + time.Second)
	_, err = backend.Session(nil).SignIn(ctx, "user@x.com", "secret1")
	require.NoError(t, err)
}

func TestLocalSessionNotifiesObservers(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend(t)
	ctx := context.Background()
	session := backend.Session(nil)

	var seen []*domain.AuthUser
	unsubscribe := session.ObserveSession(func(user *domain.AuthUser) {
		seen = append(seen, user)
	})

	_, err := session.SignUp(ctx, "user@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, session.SignOut(ctx))

	unsubscribe()
	_, err = session.SignIn(ctx, "user@x.com", "secret1")
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Nil(t, seen[0], "observer is called immediately with the current user")
	require.NotNil(t, seen[1])
	assert.Equal(t, "user@x.com", seen[1].Email)
	assert.Nil(t, seen[2])
	require.NotNil(t, session.CurrentUser())
}

func TestLocalResetPassword(t *testing.T) {
	t.Parallel()

	var tickets []ResetTicket
	clock := &stepClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	backend := NewLocalBackend(newMemoryUsers(), LocalOptions{
		BcryptCost: bcrypt.MinCost,
		Clock:      clock,
		OnReset:    func(ticket ResetTicket) { tickets = append(tickets, ticket) },
	}, nil)
	ctx := context.Background()

	_, err := backend.Session(nil).SignUp(ctx, "user@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, backend.Session(nil).ResetPassword(ctx, "USER@x.com"))
	require.Len(t, tickets, 1)
	assert.Equal(t, "user@x.com", tickets[0].Email)
	assert.Equal(t, DigestResetToken(tickets[0].Token), tickets[0].Digest)
	assert.Equal(t, clock.now.Add(DefaultResetTTL), tickets[0].ExpiresAt)

	err = backend.Session(nil).ResetPassword(ctx, "missing@x.com")
	assert.Equal(t, domain.AuthUserNotFound, authCode(t, err))

	err = backend.Session(nil).ResetPassword(ctx, "bad")
	assert.Equal(t, domain.AuthInvalidEmail, authCode(t, err))
}

func TestStaticBackendOnlyKnowsConfiguredUser(t *testing.T) {
	t.Parallel()

	backend := NewStaticBackend(StaticUser{
		Email:       "Demo@Stellar.dev",
		Password:    "stellar-demo",
		UID:         "mock-user-1",
		DisplayName: "Demo User",
	}, nil)
	ctx := context.Background()
	session := backend.Session(nil)

	_, err := session.SignIn(ctx, "demo@stellar.dev", "wrong")
	assert.Equal(t, domain.AuthWrongPassword, authCode(t, err))

	user, err := session.SignIn(ctx, "demo@stellar.dev", "stellar-demo")
	require.NoError(t, err)
	assert.Equal(t, domain.AuthUser{UID: "mock-user-1", Email: "demo@stellar.dev", DisplayName: "Demo User", EmailVerified: true}, user)
	assert.Equal(t, &user, session.CurrentUser())

	_, err = backend.Session(nil).SignUp(ctx, "other@x.com", "whatever")
	assert.Equal(t, domain.AuthEmailAlreadyInUse, authCode(t, err))

	require.NoError(t, session.SignOut(ctx))
	assert.Nil(t, session.CurrentUser())
}

func TestTokenCodecRoundTrip(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	codec, err := NewTokenCodec([]byte(strings.Repeat("k", MinSecretLength)), time.Hour, clock)
	require.NoError(t, err)

	user := domain.AuthUser{UID: "uid-1", Email: "a@b.com", DisplayName: "A", EmailVerified: true}
	raw, err := codec.Issue(user)
	require.NoError(t, err)

	parsed, err := codec.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, user, parsed)

	clock.advance(2 * time.Hour)
	_, err = codec.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidSessionToken)
}

func TestTokenCodecRejectsForeignTokens(t *testing.T) {
	t.Parallel()

	secret := []byte(strings.Repeat("k", MinSecretLength))
	codec, err := NewTokenCodec(secret, time.Hour, nil)
	require.NoError(t, err)

	other, err := NewTokenCodec([]byte(strings.Repeat("z", MinSecretLength)), time.Hour, nil)
	require.NoError(t, err)
	foreign, err := other.Issue(domain.AuthUser{UID: "uid-1"})
	require.NoError(t, err)

	_, err = codec.Parse(foreign)
	require.ErrorIs(t, err, ErrInvalidSessionToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "uid-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Parse(unsigned)
	require.ErrorIs(t, err, ErrInvalidSessionToken)

	_, err = codec.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidSessionToken)
}

func TestNewTokenCodecValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := NewTokenCodec([]byte("short"), time.Hour, nil)
	require.Error(t, err)

	_, err = NewTokenCodec([]byte(strings.Repeat("k", MinSecretLength)), 0, nil)
	require.Error(t, err)
}
