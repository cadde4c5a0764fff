package session

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const activityBarWidth = 24

type RenderOptions struct {
	Now time.Time
	// StaleAfter is how long after its last page view a session counts as
	// inactive. Zero disables the activity bar.
	StaleAfter time.Duration
}

func renderView(statuses []application.SessionStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Visitor Sessions"),
		s.header.Render(fmt.Sprintf("visitors: %d", len(statuses))),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No visitor sessions stored."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderSession(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(status application.SessionStatus, opts RenderOptions, s styles) string {
	parts := []string{s.visitor.Render("Visitor: " + status.VisitorID)}

	snapshot := status.Snapshot
	if snapshot.IsZero() {
		parts = append(parts, s.empty.Render("anonymous, nothing stored"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	parts = append(parts,
		field("user id", orNA(snapshot.UserID), s),
		field("email", orNA(snapshot.Email), s),
		field("name", orNA(snapshot.Name), s),
		field("created", formatUnix(snapshot.CreatedAt), s),
	)

	if status.LastPage != "" {
		parts = append(parts, activityLine(status, opts, s))
	}

	for _, key := range attributeKeys(snapshot.CustomAttributes) {
		parts = append(parts, field(key, fmt.Sprint(snapshot.CustomAttributes[key]), s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func field(label, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.label.Render(label+":"), " ", s.detail.Render(value))
}

func activityLine(status application.SessionStatus, opts RenderOptions, s styles) string {
	label := s.label.Render("last page:")
	page := s.detail.Render(status.LastPage)
	if opts.Now.IsZero() || status.LastSeen.IsZero() {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", page)
	}

	seenColor := recencyColor(status.LastSeen, opts.Now, opts.StaleAfter)
	seen := lipgloss.NewStyle().Foreground(seenColor).Render(fmt.Sprintf("(%s)", formatSeenRelative(status.LastSeen, opts.Now)))

	parts := []string{label, " ", page, " ", seen}
	if opts.StaleAfter > 0 {
		parts = append(parts, " ", renderActivityBar(freshPercent(status.LastSeen, opts.Now, opts.StaleAfter), activityBarWidth, s))
		if opts.Now.Sub(status.LastSeen) > opts.StaleAfter {
			parts = append(parts, " ", s.warning.Render("[inactive]"))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// freshPercent is the share of the stale window still ahead of the session.
func freshPercent(lastSeen, now time.Time, staleAfter time.Duration) float64 {
	if staleAfter <= 0 {
		return 0
	}
	age := now.Sub(lastSeen)
	return clampPercent(100 * (1 - age.Seconds()/staleAfter.Seconds()))
}

func renderActivityBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatSeenRelative(lastSeen, now time.Time) string {
	elapsed := now.Sub(lastSeen)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		return plural(int(elapsed.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return "n/a"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "n/a"
	}
	return value
}

// attributeKeys lists custom attributes other than the page-tracking pair,
// which the activity line already shows.
func attributeKeys(attrs domain.Attributes) []string {
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		if key == domain.AttrLastPageURL || key == domain.AttrLastURLUpdateTime {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func interpolateColor(value, lo, hi float64) lipgloss.Color {
	if hi == lo {
		return lipgloss.Color("255")
	}

	normalized := (value - lo) / (hi - lo)
	normalized = min(max(normalized, 0), 1)

	// ANSI greyscale ramp from 240 (faded) to 255 (bright).
	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}

// recencyColor is brightest for a page view that just happened and fades
// out over the stale window.
func recencyColor(lastSeen, now time.Time, staleAfter time.Duration) lipgloss.Color {
	if staleAfter <= 0 || lastSeen.After(now) {
		return lipgloss.Color("255")
	}
	return interpolateColor(freshPercent(lastSeen, now, staleAfter), 0, 100)
}
