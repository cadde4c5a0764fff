// Package chain layers a fallback visitor storage behind a primary one so a
// failing database degrades to process memory instead of losing sessions.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/stellar-site/internal/ports"
)

type Visitors struct {
	primary  ports.VisitorStorage
	fallback ports.VisitorStorage
}

var _ ports.VisitorStorage = (*Visitors)(nil)

var (
	errNilPrimaryStore  = errors.New("primary visitor storage is nil")
	errNilFallbackStore = errors.New("fallback visitor storage is nil")
)

func NewVisitors(primary ports.VisitorStorage, fallback ports.VisitorStorage) (*Visitors, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Visitors{primary: primary, fallback: fallback}, nil
}

func (v *Visitors) ForVisitor(visitorID string) ports.KeyValueStore {
	return NewStore(v.primary.ForVisitor(visitorID), v.fallback.ForVisitor(visitorID))
}

type Store struct {
	primary  ports.KeyValueStore
	fallback ports.KeyValueStore
}

var _ ports.KeyValueStore = (*Store)(nil)

func NewStore(primary ports.KeyValueStore, fallback ports.KeyValueStore) *Store {
	if primary == nil {
		panic(errNilPrimaryStore)
	}
	if fallback == nil {
		panic(errNilFallbackStore)
	}

	return &Store{primary: primary, fallback: fallback}
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Put(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

// Get consults the fallback whenever the primary cannot answer, including
// when the key is absent there, since the value may have been written during
// a primary outage.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Delete removes the key from both backends.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.primary.Delete(ctx, key)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Delete(ctx, key)
	if err == nil && fallbackErr == nil {
		return nil
	}

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("primary backend delete failed: %w", err))
	}
	if fallbackErr != nil {
		errs = append(errs, fmt.Errorf("fallback backend delete failed: %w", fallbackErr))
	}

	return errors.Join(errs...)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
