// Package memory is a process-local visitor storage.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
)

type Visitors struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

var _ ports.VisitorStorage = (*Visitors)(nil)

func NewVisitors() *Visitors {
	return &Visitors{values: make(map[string]map[string]string)}
}

func (v *Visitors) ForVisitor(visitorID string) ports.KeyValueStore {
	return &Store{visitors: v, visitorID: visitorID}
}

type Store struct {
	visitors  *Visitors
	visitorID string
}

var _ ports.KeyValueStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.visitors.mu.RLock()
	defer s.visitors.mu.RUnlock()

	value, ok := s.visitors.values[s.visitorID][key]
	if !ok {
		return "", fmt.Errorf("visitor value %q: %w", key, domain.ErrValueNotFound)
	}

	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.visitors.mu.Lock()
	defer s.visitors.mu.Unlock()

	bucket, ok := s.visitors.values[s.visitorID]
	if !ok {
		bucket = make(map[string]string)
		s.visitors.values[s.visitorID] = bucket
	}
	bucket[key] = value

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.visitors.mu.Lock()
	defer s.visitors.mu.Unlock()

	bucket := s.visitors.values[s.visitorID]
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(s.visitors.values, s.visitorID)
	}

	return nil
}
