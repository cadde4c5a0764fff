// Package auth provides the email/password providers behind
// ports.AuthProvider and the signed session cookie codec.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength    = 6
	DefaultMaxFailures   = 5
	DefaultFailureWindow = 15 * time.Minute
	DefaultResetTTL      = time.Hour
)

type LocalOptions struct {
	MaxFailures   int
	FailureWindow time.Duration
	ResetTTL      time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Clock      ports.Clock
	// OnReset receives every issued reset ticket. Delivery is up to the caller.
	OnReset func(ResetTicket)
}

// LocalBackend authenticates against a UserRepository. It is shared by all
// browser sessions; Session returns the per-session provider.
type LocalBackend struct {
	users  ports.UserRepository
	opts   LocalOptions
	log    *logger.Logger
	newUID func() string
	mu     sync.Mutex
	failed map[string][]time.Time
}

func NewLocalBackend(users ports.UserRepository, opts LocalOptions, log *logger.Logger) *LocalBackend {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.FailureWindow <= 0 {
		opts.FailureWindow = DefaultFailureWindow
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = DefaultResetTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &LocalBackend{
		users:  users,
		opts:   opts,
		log:    log,
		newUID: uuid.NewString,
		failed: make(map[string][]time.Time),
	}
}

// Session returns a provider for one browser session, optionally already
// signed in as current.
func (b *LocalBackend) Session(current *domain.AuthUser) *LocalSession {
	return &LocalSession{backend: b, state: newSessionState(current)}
}

func (b *LocalBackend) signUp(ctx context.Context, email, password string) (domain.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}
	if !domain.ValidEmail(email) {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInvalidEmail, nil)
	}
	if len(password) < MinPasswordLength {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthWeakPassword, nil)
	}

	normalized := domain.NormalizeEmail(email)
	if _, err := b.users.GetByEmail(ctx, normalized); err == nil {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthEmailAlreadyInUse, nil)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.opts.BcryptCost)
	if err != nil {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}

	user := domain.User{
		UID:          b.newUID(),
		Email:        normalized,
		DisplayName:  displayNameFromEmail(normalized),
		PasswordHash: string(hash),
		CreatedAt:    b.opts.Clock.Now().UTC(),
	}
	if err := b.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.AuthUser{}, domain.NewAuthError(domain.AuthEmailAlreadyInUse, err)
		}
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}

	b.log.Info("user signed up", "user_id", user.UID)
	return user.AuthUser(), nil
}

func (b *LocalBackend) signIn(ctx context.Context, email, password string) (domain.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}
	if !domain.ValidEmail(email) {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInvalidEmail, nil)
	}

	normalized := domain.NormalizeEmail(email)
	if b.throttled(normalized) {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthTooManyRequests, nil)
	}

	user, err := b.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			b.recordFailure(normalized)
			return domain.AuthUser{}, domain.NewAuthError(domain.AuthUserNotFound, err)
		}
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		b.recordFailure(normalized)
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthWrongPassword, nil)
	}

	b.clearFailures(normalized)
	b.log.Info("user signed in", "user_id", user.UID)
	return user.AuthUser(), nil
}

func (b *LocalBackend) resetPassword(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewAuthError(domain.AuthInternal, err)
	}
	if !domain.ValidEmail(email) {
		return domain.NewAuthError(domain.AuthInvalidEmail, nil)
	}

	normalized := domain.NormalizeEmail(email)
	if _, err := b.users.GetByEmail(ctx, normalized); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.NewAuthError(domain.AuthUserNotFound, err)
		}
		return domain.NewAuthError(domain.AuthInternal, err)
	}

	ticket, err := NewResetTicket(normalized, b.opts.Clock.Now().Add(b.opts.ResetTTL))
	if err != nil {
		return domain.NewAuthError(domain.AuthInternal, err)
	}

	b.log.Info("password reset issued", "email", normalized, "expires_at", ticket.ExpiresAt)
	if b.opts.OnReset != nil {
		b.opts.OnReset(ticket)
	}
	return nil
}

func (b *LocalBackend) throttled(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pruneLocked(email)) >= b.opts.MaxFailures
}

func (b *LocalBackend) recordFailure(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed[email] = append(b.pruneLocked(email), b.opts.Clock.Now())
}

func (b *LocalBackend) clearFailures(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failed, email)
}

func (b *LocalBackend) pruneLocked(email string) []time.Time {
	cutoff := b.opts.Clock.Now().Add(-b.opts.FailureWindow)
	kept := b.failed[email][:0]
	for _, at := range b.failed[email] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(b.failed, email)
		return nil
	}
	b.failed[email] = kept
	return kept
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

type LocalSession struct {
	backend *LocalBackend
	state   *sessionState
}

var _ ports.AuthProvider = (*LocalSession)(nil)

func (s *LocalSession) SignUp(ctx context.Context, email, password string) (domain.AuthUser, error) {
	user, err := s.backend.signUp(ctx, email, password)
	if err != nil {
		return domain.AuthUser{}, err
	}
	s.state.set(&user)
	return user, nil
}

func (s *LocalSession) SignIn(ctx context.Context, email, password string) (domain.AuthUser, error) {
	user, err := s.backend.signIn(ctx, email, password)
	if err != nil {
		return domain.AuthUser{}, err
	}
	s.state.set(&user)
	return user, nil
}

func (s *LocalSession) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.NewAuthError(domain.AuthInternal, err)
	}
	s.state.set(nil)
	return nil
}

func (s *LocalSession) ResetPassword(ctx context.Context, email string) error {
	return s.backend.resetPassword(ctx, email)
}

func (s *LocalSession) ObserveSession(fn func(user *domain.AuthUser)) func() {
	return s.state.observe(fn)
}

// CurrentUser returns the signed-in user, or nil.
func (s *LocalSession) CurrentUser() *domain.AuthUser {
	return s.state.current()
}
