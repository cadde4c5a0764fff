package ports

import (
	"context"

	"github.com/bnema/stellar-site/internal/domain"
)

// AuthProvider is one browser session's view of the authentication backend.
// Failures are *domain.AuthError values.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string) (domain.AuthUser, error)
	SignIn(ctx context.Context, email, password string) (domain.AuthUser, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	// ObserveSession calls fn with the current user (nil when signed out)
	// immediately and after every change.
	ObserveSession(fn func(user *domain.AuthUser)) (unsubscribe func())
}
