package domain

import (
	"maps"
	"strings"
)

const (
	// AttrLastPageURL and AttrLastURLUpdateTime are part of the contract with the
	// messaging service; casing and spacing must not change.
	AttrLastPageURL       = "Last Page URL"
	AttrLastURLUpdateTime = "Last URL Update Time"

	AnonymousUserID = "anonymous_user"
)

// Attributes holds custom attribute values. Values are strings or int64.
type Attributes map[string]any

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Merge returns a copy of a with every key of other applied on top.
func (a Attributes) Merge(other Attributes) Attributes {
	merged := make(Attributes, len(a)+len(other))
	maps.Copy(merged, a)
	maps.Copy(merged, other)
	return merged
}

func (a Attributes) String(key string) string {
	value, _ := a[key].(string)
	return value
}

func (a Attributes) Int64(key string) int64 {
	switch value := a[key].(type) {
	case int64:
		return value
	case int:
		return int64(value)
	case float64:
		return int64(value)
	default:
		return 0
	}
}

type IdentitySnapshot struct {
	UserID           string
	Email            string
	Name             string
	CreatedAt        int64
	CustomAttributes Attributes
}

func (s IdentitySnapshot) IsZero() bool {
	return s.UserID == "" && s.Email == "" && s.Name == "" && s.CreatedAt == 0 && len(s.CustomAttributes) == 0
}

func (s IdentitySnapshot) Clone() IdentitySnapshot {
	s.CustomAttributes = s.CustomAttributes.Clone()
	return s
}

// PartialIdentity is an identification request. Empty strings and a zero
// CreatedAt mean the field is absent.
type PartialIdentity struct {
	UserID           string
	Email            string
	Name             string
	CreatedAt        int64
	CustomAttributes Attributes
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveUserID picks the identifier for a merge of base and partial.
func ResolveUserID(base IdentitySnapshot, partial PartialIdentity) (string, error) {
	if id := strings.TrimSpace(partial.UserID); id != "" {
		return id, nil
	}
	if email := NormalizeEmail(partial.Email); email != "" {
		return email, nil
	}
	if base.UserID != "" {
		return base.UserID, nil
	}
	if email := NormalizeEmail(base.Email); email != "" {
		return email, nil
	}

	return "", ErrMissingIdentifier
}

// MergeIdentity applies partial over base field by field. The first
// CreatedAt ever recorded wins; now is used only when neither side has one.
func MergeIdentity(base IdentitySnapshot, partial PartialIdentity, now int64) (IdentitySnapshot, error) {
	userID, err := ResolveUserID(base, partial)
	if err != nil {
		return IdentitySnapshot{}, err
	}

	merged := base.Clone()
	merged.UserID = userID
	merged.Email = NormalizeEmail(merged.Email)
	if email := NormalizeEmail(partial.Email); email != "" {
		merged.Email = email
	}
	if name := strings.TrimSpace(partial.Name); name != "" {
		merged.Name = name
	}

	switch {
	case base.CreatedAt != 0:
		merged.CreatedAt = base.CreatedAt
	case partial.CreatedAt != 0:
		merged.CreatedAt = partial.CreatedAt
	default:
		merged.CreatedAt = now
	}

	if len(partial.CustomAttributes) > 0 {
		merged.CustomAttributes = merged.CustomAttributes.Merge(partial.CustomAttributes)
	}

	return merged, nil
}
