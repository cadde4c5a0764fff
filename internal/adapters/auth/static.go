package auth

import (
	"context"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

// StaticUser is the only account known to the static backend.
type StaticUser struct {
	Email       string
	Password    string
	UID         string
	DisplayName string
}

// StaticBackend authenticates a single configured user, for local
// development without a user database.
type StaticBackend struct {
	user StaticUser
	log  *logger.Logger
}

func NewStaticBackend(user StaticUser, log *logger.Logger) *StaticBackend {
	if log == nil {
		log = logger.Nop()
	}
	user.Email = domain.NormalizeEmail(user.Email)
	return &StaticBackend{user: user, log: log}
}

func (b *StaticBackend) Session(current *domain.AuthUser) *StaticSession {
	return &StaticSession{backend: b, state: newSessionState(current)}
}

func (b *StaticBackend) authUser() domain.AuthUser {
	return domain.AuthUser{
		UID:           b.user.UID,
		Email:         b.user.Email,
		DisplayName:   b.user.DisplayName,
		EmailVerified: true,
	}
}

type StaticSession struct {
	backend *StaticBackend
	state   *sessionState
}

var _ ports.AuthProvider = (*StaticSession)(nil)

// SignUp only succeeds for the configured email.
func (s *StaticSession) SignUp(ctx context.Context, email, _ string) (domain.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}
	if domain.NormalizeEmail(email) != s.backend.user.Email {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthEmailAlreadyInUse, nil)
	}

	user := s.backend.authUser()
	s.state.set(&user)
	s.backend.log.Debug("static user created", "user_id", user.UID)
	return user, nil
}

func (s *StaticSession) SignIn(ctx context.Context, email, password string) (domain.AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthInternal, err)
	}
	if domain.NormalizeEmail(email) != s.backend.user.Email || password != s.backend.user.Password {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthWrongPassword, nil)
	}

	user := s.backend.authUser()
	s.state.set(&user)
	s.backend.log.Debug("static user signed in", "user_id", user.UID)
	return user, nil
}

func (s *StaticSession) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.NewAuthError(domain.AuthInternal, err)
	}
	s.state.set(nil)
	return nil
}

func (s *StaticSession) ResetPassword(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewAuthError(domain.AuthInternal, err)
	}
	s.backend.log.Info("static password reset requested", "email", email)
	return nil
}

func (s *StaticSession) ObserveSession(fn func(user *domain.AuthUser)) func() {
	return s.state.observe(fn)
}

func (s *StaticSession) CurrentUser() *domain.AuthUser {
	return s.state.current()
}
