package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
)

// Visitors hands out per-visitor key/value namespaces backed by the
// visitor_storage table.
type Visitors struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.VisitorStorage = (*Visitors)(nil)

func NewVisitors(db *sql.DB) *Visitors {
	return &Visitors{db: db, now: time.Now}
}

func (v *Visitors) ForVisitor(visitorID string) ports.KeyValueStore {
	return &Store{db: v.db, visitorID: visitorID, now: v.now}
}

type Store struct {
	db        *sql.DB
	visitorID string
	now       func() time.Time
}

var _ ports.KeyValueStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM visitor_storage WHERE visitor_id = ? AND key = ?`,
		s.visitorID, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("visitor value %q: %w", key, domain.ErrValueNotFound)
		}
		return "", fmt.Errorf("read visitor value %q: %w", key, err)
	}

	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := exec(ctx, s.db,
		`INSERT INTO visitor_storage (visitor_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (visitor_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.visitorID, key, value, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write visitor value %q: %w", key, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := exec(ctx, s.db,
		`DELETE FROM visitor_storage WHERE visitor_id = ? AND key = ?`,
		s.visitorID, key,
	); err != nil {
		return fmt.Errorf("delete visitor value %q: %w", key, err)
	}

	return nil
}
