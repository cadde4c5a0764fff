package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
	"github.com/golang-jwt/jwt/v5"
)

const (
	MinSecretLength = 32
	tokenIssuer     = "stellar-site"
)

var ErrInvalidSessionToken = errors.New("invalid session token")

type sessionClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// TokenCodec signs and verifies the session cookie carrying the signed-in
// user between requests.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	clock  ports.Clock
}

func NewTokenCodec(secret []byte, ttl time.Duration, clock ports.Clock) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &TokenCodec{secret: secret, ttl: ttl, clock: clock}, nil
}

func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *TokenCodec) Issue(user domain.AuthUser) (string, error) {
	now := c.clock.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		EmailVerified: user.EmailVerified,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// Parse pins HS256 and rejects expired or foreign tokens.
func (c *TokenCodec) Parse(raw string) (domain.AuthUser, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.AuthUser{}, errors.Join(ErrInvalidSessionToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return domain.AuthUser{}, ErrInvalidSessionToken
	}

	return domain.AuthUser{
		UID:           claims.Subject,
		Email:         claims.Email,
		DisplayName:   claims.DisplayName,
		EmailVerified: claims.EmailVerified,
	}, nil
}
