package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPageName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "root", raw: "/", want: "stellar/home"},
		{name: "empty", raw: "", want: "stellar/home"},
		{name: "contact path", raw: "/contact", want: "stellar/contact"},
		{name: "absolute with trailing slash", raw: "https://site/x/y/", want: "stellar/y"},
		{name: "absolute root", raw: "https://site.example.com", want: "stellar/home"},
		{name: "query and fragment", raw: "/login?next=/home#top", want: "stellar/login"},
		{name: "relative without slash", raw: "signup", want: "stellar/signup"},
		{name: "bad escape falls back", raw: "https://site/a/%zz?x=1", want: "stellar/%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPageName(tt.raw))
		})
	}
}

func TestPageVisitAttributesUseContractKeys(t *testing.T) {
	visit := NewPageVisit("/contact", 1_700_000_000)

	attrs := visit.Attributes()
	assert.Equal(t, "stellar/contact", attrs["Last Page URL"])
	assert.Equal(t, int64(1_700_000_000), attrs["Last URL Update Time"])
}

func TestMergeIdentityDerivesUserIDFromNormalizedEmail(t *testing.T) {
	emails := []string{"A@B.com", "  a@b.com  ", "Mixed.Case@Example.ORG\t"}

	for _, email := range emails {
		t.Run(email, func(t *testing.T) {
			merged, err := MergeIdentity(IdentitySnapshot{}, PartialIdentity{Email: email}, 10)
			require.NoError(t, err)
			assert.Equal(t, NormalizeEmail(email), merged.UserID)
			assert.Equal(t, NormalizeEmail(email), merged.Email)
		})
	}
}

func TestMergeIdentityKeepsFirstCreatedAt(t *testing.T) {
	first, err := MergeIdentity(IdentitySnapshot{}, PartialIdentity{Email: "x@y.com", CreatedAt: 100}, 999)
	require.NoError(t, err)
	require.Equal(t, int64(100), first.CreatedAt)

	second, err := MergeIdentity(first, PartialIdentity{Email: "x@y.com", CreatedAt: 200}, 999)
	require.NoError(t, err)
	assert.Equal(t, int64(100), second.CreatedAt)
}

func TestMergeIdentityUsesNowWhenNoCreatedAtKnown(t *testing.T) {
	merged, err := MergeIdentity(IdentitySnapshot{}, PartialIdentity{UserID: "u-1"}, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), merged.CreatedAt)
}

func TestMergeIdentityIsFieldLevel(t *testing.T) {
	base := IdentitySnapshot{UserID: "x@y.com", Email: "x@y.com", Name: "B", CreatedAt: 5}

	merged, err := MergeIdentity(base, PartialIdentity{Name: "A"}, 10)
	require.NoError(t, err)
	assert.Equal(t, "x@y.com", merged.Email)
	assert.Equal(t, "A", merged.Name)
	assert.Equal(t, "x@y.com", merged.UserID)
}

func TestMergeIdentityMergesCustomAttributesByKey(t *testing.T) {
	base := IdentitySnapshot{
		UserID:           "u-1",
		CustomAttributes: Attributes{AttrLastPageURL: "stellar/home", "plan": "free"},
	}

	merged, err := MergeIdentity(base, PartialIdentity{CustomAttributes: Attributes{"plan": "pro"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, Attributes{AttrLastPageURL: "stellar/home", "plan": "pro"}, merged.CustomAttributes)
	assert.Equal(t, "free", base.CustomAttributes["plan"], "base must not be mutated")
}

func TestMergeIdentityRequiresIdentifier(t *testing.T) {
	_, err := MergeIdentity(IdentitySnapshot{}, PartialIdentity{Name: "Nobody"}, 1)
	require.ErrorIs(t, err, ErrMissingIdentifier)
}

func TestUpdatePayloadOmitsEmptyFields(t *testing.T) {
	payload := UpdatePayload(IdentitySnapshot{UserID: "u-1"})
	assert.Equal(t, map[string]any{"user_id": "u-1"}, payload)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "wrong password", err: NewAuthError(AuthWrongPassword, nil), want: "Invalid email or password"},
		{name: "user not found", err: NewAuthError(AuthUserNotFound, nil), want: "Invalid email or password"},
		{name: "too many requests", err: NewAuthError(AuthTooManyRequests, nil), want: "Too many failed login attempts. Please try again later"},
		{name: "email in use", err: NewAuthError(AuthEmailAlreadyInUse, nil), want: "An account with this email already exists"},
		{name: "wrapped", err: fmt.Errorf("sign in: %w", NewAuthError(AuthInvalidEmail, nil)), want: "Please enter a valid email address"},
		{name: "unmapped code", err: NewAuthError(AuthErrorCode("auth/quota-exceeded"), nil), want: "Something went wrong. Please try again."},
		{name: "plain error", err: errors.New("boom"), want: "Something went wrong. Please try again."},
		{name: "incomplete form", err: ErrIncompleteForm, want: "Please fill in all fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestContactFormValidate(t *testing.T) {
	require.NoError(t, ContactForm{Name: "A", Email: "a@b.com", Message: "hi"}.Validate())
	require.ErrorIs(t, ContactForm{Name: "A", Email: "a@b.com"}.Validate(), ErrIncompleteForm)
	assert.Contains(t, ContactForm{Message: "hi"}.ComposedMessage(), "hi")
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("a@b.com"))
	assert.False(t, ValidEmail("a@b"))
	assert.False(t, ValidEmail("@b.com"))
	assert.False(t, ValidEmail("a b@c.com"))
}
