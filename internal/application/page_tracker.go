package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

const (
	DefaultPollInterval = time.Second
	PageViewEvent       = "page_view"
)

type TrackerOptions struct {
	InitialURL     string
	TrackPageViews bool
	Clock          ports.Clock
}

// PageTracker pushes the "Last Page URL" attribute when the visitor's page
// changes or the visitor engages with the widget.
type PageTracker struct {
	mu             sync.Mutex
	reconciler     *IdentityReconciler
	facade         *WidgetFacade
	location       ports.Location
	clock          ports.Clock
	trackPageViews bool
	lastKnownURL   string
	lastPushed     string
	logger         *logger.Logger
}

func NewPageTracker(reconciler *IdentityReconciler, facade *WidgetFacade, location ports.Location, opts TrackerOptions, log *logger.Logger) *PageTracker {
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &PageTracker{
		reconciler:     reconciler,
		facade:         facade,
		location:       location,
		clock:          opts.Clock,
		trackPageViews: opts.TrackPageViews,
		lastKnownURL:   opts.InitialURL,
		logger:         log,
	}
}

// Navigate handles an explicit route change reported by the page.
func (t *PageTracker) Navigate(ctx context.Context, rawURL string) bool {
	t.mu.Lock()
	t.lastKnownURL = rawURL
	t.mu.Unlock()
	return t.push(ctx, rawURL, false)
}

// CheckLocation compares the tab's location with the last known URL.
func (t *PageTracker) CheckLocation(ctx context.Context) bool {
	current := t.location.Current()

	t.mu.Lock()
	if current == "" || current == t.lastKnownURL {
		t.mu.Unlock()
		return false
	}
	t.lastKnownURL = current
	t.mu.Unlock()

	return t.push(ctx, current, false)
}

// HandleWidgetEvent pushes on widget engagement even when the page is
// unchanged.
func (t *PageTracker) HandleWidgetEvent(ctx context.Context, event domain.WidgetEvent) bool {
	if _, ok := event.SubscriptionVerb(); !ok {
		return false
	}
	return t.push(ctx, t.currentURL(), true)
}

// Touch forces a push of the current page.
func (t *PageTracker) Touch(ctx context.Context) bool {
	return t.push(ctx, t.currentURL(), true)
}

// Run polls the location every interval until ctx is done.
func (t *PageTracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.CheckLocation(ctx)
		}
	}
}

func (t *PageTracker) LastPushed() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPushed
}

func (t *PageTracker) currentURL() string {
	if current := t.location.Current(); current != "" {
		return current
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastKnownURL
}

func (t *PageTracker) push(ctx context.Context, rawURL string, force bool) bool {
	if ctx.Err() != nil {
		return false
	}

	visit := domain.NewPageVisit(rawURL, t.clock.Now().Unix())

	t.mu.Lock()
	unchanged := visit.FormattedPageName == t.lastPushed
	t.mu.Unlock()
	if unchanged && !force {
		return false
	}

	if !t.facade.Ready() {
		t.logger.Debug("page push dropped", "page", visit.FormattedPageName)
		return false
	}

	userID := t.reconciler.Current().UserID
	if userID == "" {
		userID = domain.AnonymousUserID
	}

	t.facade.Update(map[string]any{
		"user_id":           userID,
		"custom_attributes": map[string]any(visit.Attributes()),
	})
	if t.trackPageViews {
		t.facade.TrackEvent(PageViewEvent, map[string]any{
			"page_url":  visit.FormattedPageName,
			"timestamp": visit.Timestamp,
		})
	}

	t.mu.Lock()
	t.lastPushed = visit.FormattedPageName
	t.mu.Unlock()

	t.reconciler.RecordPageVisit(ctx, visit)
	return true
}
