// Package file keeps visitor storage as one directory per visitor with one
// file per key.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
)

const (
	storeDirMode = 0o700
	valueFileMod = 0o600
)

// Visitors shares one lock across every visitor directory under root.
type Visitors struct {
	root string
	mu   sync.RWMutex
}

var _ ports.VisitorStorage = (*Visitors)(nil)

func NewVisitors(root string) *Visitors {
	return &Visitors{root: filepath.Clean(root)}
}

func (v *Visitors) ForVisitor(visitorID string) ports.KeyValueStore {
	return &Store{visitors: v, visitorID: visitorID}
}

type Store struct {
	visitors  *Visitors
	visitorID string
}

var _ ports.KeyValueStore = (*Store)(nil)

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.visitors.mu.Lock()
	defer s.visitors.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create visitor directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp value file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write visitor value %q: %w", key, err)
	}
	if err := tmp.Chmod(valueFileMod); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod visitor value %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close visitor value %q: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace visitor value %q: %w", key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return "", err
	}

	s.visitors.mu.RLock()
	defer s.visitors.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("visitor value %q: %w", key, domain.ErrValueNotFound)
		}
		return "", fmt.Errorf("read visitor value %q: %w", key, err)
	}

	return string(data), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.visitors.mu.Lock()
	defer s.visitors.mu.Unlock()

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete visitor value %q: %w", key, err)
	}

	return nil
}

func (s *Store) pathForKey(key string) (string, error) {
	visitor, err := cleanSegment("visitor id", s.visitorID)
	if err != nil {
		return "", err
	}
	name, err := cleanSegment("key", key)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.visitors.root, visitor, name), nil
}

// cleanSegment accepts a single path element only.
func cleanSegment(kind, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%s is empty", kind)
	}
	if trimmed == "." || trimmed == ".." || strings.ContainsAny(trimmed, `/\`) {
		return "", fmt.Errorf("invalid %s %q", kind, raw)
	}

	return trimmed, nil
}
