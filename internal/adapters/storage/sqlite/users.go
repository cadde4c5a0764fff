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

type Users struct {
	db *sql.DB
}

var _ ports.UserRepository = (*Users)(nil)

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

func (r *Users) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT uid, email, display_name, password_hash, created_at FROM users WHERE email = ?`,
		domain.NormalizeEmail(email))
}

func (r *Users) GetByUID(ctx context.Context, uid string) (domain.User, error) {
	return r.getOne(ctx, `SELECT uid, email, display_name, password_hash, created_at FROM users WHERE uid = ?`, uid)
}

func (r *Users) Create(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := exec(ctx, r.db,
		`INSERT INTO users (uid, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.UID, domain.NormalizeEmail(user.Email), user.DisplayName, user.PasswordHash, user.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %q: %w", user.Email, domain.ErrUserExists)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *Users) getOne(ctx context.Context, query string, arg string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	var (
		user      domain.User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.UID, &user.Email, &user.DisplayName, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("read user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()

	return user, nil
}
