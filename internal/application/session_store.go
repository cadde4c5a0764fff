package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

const (
	SnapshotKey       = "intercom_settings"
	LegacySnapshotKey = "intercom_user_session"
)

// SessionStore persists one visitor's identity snapshot. Every method is
// total: backend failures are logged and reported as ErrStorageUnavailable.
type SessionStore struct {
	kv     ports.KeyValueStore
	logger *logger.Logger
}

func NewSessionStore(kv ports.KeyValueStore, log *logger.Logger) *SessionStore {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionStore{kv: kv, logger: log}
}

type snapshotRecord struct {
	UserID           string         `json:"user_id,omitempty"`
	Email            string         `json:"email,omitempty"`
	Name             string         `json:"name,omitempty"`
	CreatedAt        int64          `json:"created_at,omitempty"`
	CustomAttributes map[string]any `json:"custom_attributes,omitempty"`
}

type legacyRecord struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	CreatedAt         int64  `json:"created_at"`
	LastPageURL       string `json:"Last Page URL"`
	LastURLUpdateTime int64  `json:"Last URL Update Time"`
}

func (s *SessionStore) Save(ctx context.Context, snapshot domain.IdentitySnapshot) error {
	record := snapshotRecord{
		UserID:           snapshot.UserID,
		Email:            domain.NormalizeEmail(snapshot.Email),
		Name:             snapshot.Name,
		CreatedAt:        snapshot.CreatedAt,
		CustomAttributes: snapshot.CustomAttributes.Clone(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("encode identity snapshot", "error", err)
		return fmt.Errorf("encode identity snapshot: %w", err)
	}

	if err := s.kv.Put(ctx, SnapshotKey, string(data)); err != nil {
		s.logger.Warn("persist identity snapshot", "error", err)
		return fmt.Errorf("save identity snapshot: %w", errors.Join(domain.ErrStorageUnavailable, err))
	}

	return nil
}

// Load returns the stored snapshot. A value that cannot be parsed is cleared
// and reported as absent.
func (s *SessionStore) Load(ctx context.Context) (domain.IdentitySnapshot, bool) {
	if snapshot, ok := s.loadCurrent(ctx); ok {
		return snapshot, true
	}
	return s.loadLegacy(ctx)
}

func (s *SessionStore) loadCurrent(ctx context.Context) (domain.IdentitySnapshot, bool) {
	raw, ok := s.read(ctx, SnapshotKey)
	if !ok {
		return domain.IdentitySnapshot{}, false
	}

	var record snapshotRecord
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&record); err != nil {
		s.discardCorrupted(ctx, SnapshotKey, err)
		return domain.IdentitySnapshot{}, false
	}

	snapshot := domain.IdentitySnapshot{
		UserID:           record.UserID,
		Email:            domain.NormalizeEmail(record.Email),
		Name:             record.Name,
		CreatedAt:        record.CreatedAt,
		CustomAttributes: decodeAttributes(record.CustomAttributes),
	}
	if snapshot.IsZero() {
		return domain.IdentitySnapshot{}, false
	}

	return snapshot, true
}

func (s *SessionStore) loadLegacy(ctx context.Context) (domain.IdentitySnapshot, bool) {
	raw, ok := s.read(ctx, LegacySnapshotKey)
	if !ok {
		return domain.IdentitySnapshot{}, false
	}

	var record legacyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.discardCorrupted(ctx, LegacySnapshotKey, err)
		return domain.IdentitySnapshot{}, false
	}

	snapshot := domain.IdentitySnapshot{
		UserID:    record.UserID,
		Email:     domain.NormalizeEmail(record.Email),
		Name:      record.Name,
		CreatedAt: record.CreatedAt,
	}
	if snapshot.UserID == "" {
		snapshot.UserID = snapshot.Email
	}
	if record.LastPageURL != "" {
		snapshot.CustomAttributes = domain.Attributes{domain.AttrLastPageURL: record.LastPageURL}
		if record.LastURLUpdateTime != 0 {
			snapshot.CustomAttributes[domain.AttrLastURLUpdateTime] = record.LastURLUpdateTime
		}
	}
	if snapshot.IsZero() {
		return domain.IdentitySnapshot{}, false
	}

	return snapshot, true
}

// MergeCustomAttributes read-merge-writes attrs into the stored snapshot.
func (s *SessionStore) MergeCustomAttributes(ctx context.Context, attrs domain.Attributes) error {
	snapshot, _ := s.Load(ctx)
	snapshot.CustomAttributes = snapshot.CustomAttributes.Merge(attrs)
	return s.Save(ctx, snapshot)
}

func (s *SessionStore) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{SnapshotKey, LegacySnapshotKey} {
		if err := s.kv.Delete(ctx, key); err != nil {
			s.logger.Warn("clear identity snapshot", "key", key, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("clear identity snapshot: %w", errors.Join(append([]error{domain.ErrStorageUnavailable}, errs...)...))
	}

	return nil
}

func (s *SessionStore) read(ctx context.Context, key string) (string, bool) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrValueNotFound) {
			s.logger.Warn("read identity snapshot", "key", key, "error", err)
		}
		return "", false
	}
	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	return raw, true
}

func (s *SessionStore) discardCorrupted(ctx context.Context, key string, cause error) {
	s.logger.Warn("discarding corrupted identity snapshot", "key", key, "error", cause)
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warn("delete corrupted identity snapshot", "key", key, "error", err)
	}
}

func decodeAttributes(raw map[string]any) domain.Attributes {
	if len(raw) == 0 {
		return nil
	}

	attrs := make(domain.Attributes, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				attrs[key] = n
			} else if f, err := v.Float64(); err == nil {
				attrs[key] = int64(f)
			}
		case string:
			attrs[key] = v
		case bool:
			attrs[key] = fmt.Sprint(v)
		}
	}

	return attrs
}
