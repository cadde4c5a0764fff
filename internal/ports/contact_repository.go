package ports

import (
	"context"

	"github.com/bnema/stellar-site/internal/domain"
)

type ContactRepository interface {
	Save(ctx context.Context, submission domain.ContactSubmission) error
	List(ctx context.Context) ([]domain.ContactSubmission, error)
}
