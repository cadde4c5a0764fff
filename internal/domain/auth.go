package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type AuthUser struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool
}

type User struct {
	UID          string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

func (u User) AuthUser() AuthUser {
	return AuthUser{UID: u.UID, Email: u.Email, DisplayName: u.DisplayName, EmailVerified: true}
}

type AuthErrorCode string

const (
	AuthInvalidEmail       AuthErrorCode = "auth/invalid-email"
	AuthUserNotFound       AuthErrorCode = "auth/user-not-found"
	AuthWrongPassword      AuthErrorCode = "auth/wrong-password"
	AuthEmailAlreadyInUse  AuthErrorCode = "auth/email-already-in-use"
	AuthWeakPassword       AuthErrorCode = "auth/weak-password"
	AuthTooManyRequests    AuthErrorCode = "auth/too-many-requests"
	AuthMissingCredentials AuthErrorCode = "auth/missing-credentials"
	AuthInternal           AuthErrorCode = "auth/internal-error"
)

// AuthError is returned by authentication providers.
type AuthError struct {
	Code AuthErrorCode
	Err  error
}

func NewAuthError(code AuthErrorCode, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

const genericAuthMessage = "Something went wrong. Please try again."

// UserMessage maps an authentication failure onto the fixed set of messages
// shown in forms.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrIncompleteForm) {
		return "Please fill in all fields"
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return genericAuthMessage
	}

	switch authErr.Code {
	case AuthInvalidEmail:
		return "Please enter a valid email address"
	case AuthUserNotFound, AuthWrongPassword:
		return "Invalid email or password"
	case AuthEmailAlreadyInUse:
		return "An account with this email already exists"
	case AuthWeakPassword:
		return "Password should be at least 6 characters"
	case AuthTooManyRequests:
		return "Too many failed login attempts. Please try again later"
	case AuthMissingCredentials:
		return "Please fill in all fields"
	default:
		return genericAuthMessage
	}
}

// ValidEmail is the shape check used before a provider is called.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domainPart := email[at+1:]
	return strings.Contains(domainPart, ".") && !strings.ContainsAny(email, " \t\r\n")
}
