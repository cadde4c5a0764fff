package session

import (
	"testing"
	"time"

	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIdentifiedSession(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output, err := Render([]application.SessionStatus{
		{
			VisitorID: "visitor-1",
			Snapshot: domain.IdentitySnapshot{
				UserID:    "ada@example.com",
				Email:     "ada@example.com",
				Name:      "Ada",
				CreatedAt: now.Add(-48 * time.Hour).Unix(),
				CustomAttributes: domain.Attributes{
					"city":                       "Lisbon",
					domain.AttrLastPageURL:       "stellar/contact",
					domain.AttrLastURLUpdateTime: now.Add(-90 * time.Minute).Unix(),
				},
			},
			LastPage: "stellar/contact",
			LastSeen: now.Add(-90 * time.Minute),
		},
	}, RenderOptions{Now: now, StaleAfter: 24 * time.Hour})

	require.NoError(t, err)
	assert.Contains(t, output, "visitors: 1")
	assert.Contains(t, output, "Visitor: visitor-1")
	assert.Contains(t, output, "ada@example.com")
	assert.Contains(t, output, "stellar/contact")
	assert.Contains(t, output, "(1 hour ago)")
	assert.Contains(t, output, "city: Lisbon")
	assert.Contains(t, output, "2026-02-12T11:00:00Z")
	assert.NotContains(t, output, domain.AttrLastURLUpdateTime)
	assert.NotContains(t, output, "[inactive]")
}

func TestRenderMarksInactiveSessions(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output, err := Render([]application.SessionStatus{
		{
			VisitorID: "visitor-1",
			Snapshot:  domain.IdentitySnapshot{UserID: "anonymous_user", CustomAttributes: domain.Attributes{domain.AttrLastPageURL: "stellar/home"}},
			LastPage:  "stellar/home",
			LastSeen:  now.Add(-3 * 24 * time.Hour),
		},
		{VisitorID: "visitor-2"},
	}, RenderOptions{Now: now, StaleAfter: 24 * time.Hour})

	require.NoError(t, err)
	assert.Contains(t, output, "visitors: 2")
	assert.Contains(t, output, "(3 days ago)")
	assert.Contains(t, output, "[inactive]")
	assert.Contains(t, output, "anonymous, nothing stored")
}

func TestRenderEmpty(t *testing.T) {
	output, err := Render(nil, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "visitors: 0")
	assert.Contains(t, output, "No visitor sessions stored.")
}

func TestFreshPercent(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastSeen time.Time
		want     float64
	}{
		{name: "just seen", lastSeen: now, want: 100},
		{name: "half way", lastSeen: now.Add(-12 * time.Hour), want: 50},
		{name: "past window", lastSeen: now.Add(-48 * time.Hour), want: 0},
		{name: "clock skew", lastSeen: now.Add(time.Hour), want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, freshPercent(tt.lastSeen, now, 24*time.Hour), 0.001)
		})
	}
}

func TestFormatSeenRelative(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", formatSeenRelative(now.Add(-10*time.Second), now))
	assert.Equal(t, "5 minutes ago", formatSeenRelative(now.Add(-5*time.Minute), now))
	assert.Equal(t, "1 day ago", formatSeenRelative(now.Add(-30*time.Hour), now))
}
