package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
)

type Contacts struct {
	db *sql.DB
}

var _ ports.ContactRepository = (*Contacts)(nil)

func NewContacts(db *sql.DB) *Contacts {
	return &Contacts{db: db}
}

func (r *Contacts) Save(ctx context.Context, submission domain.ContactSubmission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := exec(ctx, r.db,
		`INSERT INTO contacts (id, name, email, message, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		submission.ID, submission.Name, submission.Email, submission.Message, submission.UserID, submission.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert contact submission: %w", err)
	}

	return nil
}

// List returns submissions oldest first.
func (r *Contacts) List(ctx context.Context) ([]domain.ContactSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, message, user_id, created_at FROM contacts ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list contact submissions: %w", err)
	}
	defer rows.Close()

	var submissions []domain.ContactSubmission
	for rows.Next() {
		var (
			submission domain.ContactSubmission
			createdAt  int64
		)
		if err := rows.Scan(&submission.ID, &submission.Name, &submission.Email, &submission.Message, &submission.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan contact submission: %w", err)
		}
		submission.CreatedAt = time.Unix(createdAt, 0).UTC()
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact submissions: %w", err)
	}

	return submissions, nil
}
