// Package toml persists user accounts and contact submissions in a single
// versioned TOML document. It backs the file storage driver.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	RecordsFileName = "records.toml"
	recordsFileMode = 0o600
	recordsDirMode  = 0o700
	tempFilePattern = ".records-*.toml.tmp"
)

type Repository struct {
	recordsPath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var (
	_ ports.UserRepository    = (*Repository)(nil)
	_ ports.ContactRepository = (*Repository)(nil)
)

func NewRepository(recordsPath string) (*Repository, error) {
	if recordsPath == "" {
		return nil, errors.New("records path is empty")
	}

	absPath, err := filepath.Abs(recordsPath)
	if err != nil {
		return nil, fmt.Errorf("resolve records path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Repository{recordsPath: absPath, mu: lockForPath(absPath)}, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	normalized := domain.NormalizeEmail(email)
	return r.findUser(ctx, func(u userSchema) bool { return u.Email == normalized })
}

func (r *Repository) GetByUID(ctx context.Context, uid string) (domain.User, error) {
	return r.findUser(ctx, func(u userSchema) bool { return u.UID == uid })
}

func (r *Repository) Create(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toUserSchema(user)
	for _, existing := range file.Users {
		if existing.Email == encoded.Email || existing.UID == encoded.UID {
			return fmt.Errorf("create user %q: %w", user.Email, domain.ErrUserExists)
		}
	}
	file.Users = append(file.Users, encoded)

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) Save(ctx context.Context, submission domain.ContactSubmission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	file.Contacts = append(file.Contacts, contactSchema{
		ID:        submission.ID,
		Name:      submission.Name,
		Email:     submission.Email,
		Message:   submission.Message,
		UserID:    submission.UserID,
		CreatedAt: formatTime(submission.CreatedAt),
	})

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

// List returns submissions in the order they were saved.
func (r *Repository) List(ctx context.Context) ([]domain.ContactSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	submissions := make([]domain.ContactSubmission, 0, len(file.Contacts))
	for _, entry := range file.Contacts {
		submissions = append(submissions, domain.ContactSubmission{
			ID:        entry.ID,
			Name:      entry.Name,
			Email:     entry.Email,
			Message:   entry.Message,
			UserID:    entry.UserID,
			CreatedAt: parseTime(entry.CreatedAt),
		})
	}

	return submissions, nil
}

func (r *Repository) findUser(ctx context.Context, match func(userSchema) bool) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.User{}, err
	}

	for _, entry := range file.Users {
		if match(entry) {
			return fromUserSchema(entry), nil
		}
	}

	return domain.User{}, domain.ErrUserNotFound
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.recordsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read records file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode records file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.recordsPath), recordsDirMode); err != nil {
		return fmt.Errorf("create records directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode records file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.recordsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp records file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp records file: %w", err)
	}

	if err := tempFile.Chmod(recordsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp records file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp records file: %w", err)
	}

	if err := os.Rename(tempName, r.recordsPath); err != nil {
		return fmt.Errorf("replace records file: %w", err)
	}

	cleanup = false

	return nil
}

func toUserSchema(user domain.User) userSchema {
	return userSchema{
		UID:          user.UID,
		Email:        domain.NormalizeEmail(user.Email),
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    formatTime(user.CreatedAt),
	}
}

func fromUserSchema(user userSchema) domain.User {
	return domain.User{
		UID:          user.UID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    parseTime(user.CreatedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
