package ports

import (
	"context"

	"github.com/bnema/stellar-site/internal/domain"
)

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUID(ctx context.Context, uid string) (domain.User, error)
	Create(ctx context.Context, user domain.User) error
}
