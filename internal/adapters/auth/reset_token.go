package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// ResetTicket is a one-time password reset credential. Token goes to the
// visitor and Digest is the form safe to persist.
type ResetTicket struct {
	Email     string
	Token     string
	Digest    string
	ExpiresAt time.Time
}

func NewResetTicket(email string, expiresAt time.Time) (ResetTicket, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return ResetTicket{}, err
	}

	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	return ResetTicket{
		Email:     email,
		Token:     token,
		Digest:    DigestResetToken(token),
		ExpiresAt: expiresAt,
	}, nil
}

func DigestResetToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
