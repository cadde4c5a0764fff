package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

const DefaultLauncherSelector = "#intercom-custom-launcher"

type TabConfig struct {
	AppID                  string
	APIBase                string
	ScriptBaseURL          string
	HideDefaultLauncher    bool
	CustomLauncherSelector string
	ResetDelay             time.Duration
	TrackPageViews         bool
	InitialURL             string
}

func (c TabConfig) defaultSettings() domain.Settings {
	selector := c.CustomLauncherSelector
	if selector == "" {
		selector = DefaultLauncherSelector
	}
	return domain.Settings{
		AppID:                  c.AppID,
		APIBase:                c.APIBase,
		HideDefaultLauncher:    c.HideDefaultLauncher,
		CustomLauncherSelector: selector,
	}
}

type TabDeps struct {
	Storage   ports.KeyValueStore
	Host      ports.WidgetHost
	Clock     ports.Clock
	Scheduler ports.Scheduler
	Logger    *logger.Logger
}

// Tab is the widget session state of one page view.
type Tab struct {
	Store      *SessionStore
	Settings   *SettingsRegistry
	Bootstrap  *WidgetBootstrap
	Facade     *WidgetFacade
	Reconciler *IdentityReconciler
	Tracker    *PageTracker

	appID      string
	location   *tabLocation
	subscribe  sync.Once
	subscribed atomic.Bool
	logger     *logger.Logger

	// sessionBound is set while SiteService.Bind resets the visitor on
	// sign-out.
	sessionBound atomic.Bool
}

// NewTab assembles the components for one page view and restores the stored
// identity into the settings the widget will be seeded with.
func NewTab(ctx context.Context, cfg TabConfig, deps TabDeps) *Tab {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	location := &tabLocation{url: cfg.InitialURL}
	store := NewSessionStore(deps.Storage, log.Named("store"))
	settings := NewSettingsRegistry(cfg.defaultSettings())
	bootstrap := NewWidgetBootstrap(deps.Host, settings, cfg.ScriptBaseURL, log.Named("bootstrap"))
	facade := NewWidgetFacade(deps.Host, bootstrap, log.Named("facade"))
	reconciler := NewIdentityReconciler(store, settings, facade, bootstrap, ReconcilerOptions{
		ResetDelay: cfg.ResetDelay,
		Clock:      deps.Clock,
		Scheduler:  deps.Scheduler,
	}, log.Named("reconciler"))
	tracker := NewPageTracker(reconciler, facade, location, TrackerOptions{
		InitialURL:     cfg.InitialURL,
		TrackPageViews: cfg.TrackPageViews,
		Clock:          deps.Clock,
	}, log.Named("tracker"))

	tab := &Tab{
		Store:      store,
		Settings:   settings,
		Bootstrap:  bootstrap,
		Facade:     facade,
		Reconciler: reconciler,
		Tracker:    tracker,
		appID:      cfg.AppID,
		location:   location,
		logger:     log,
	}

	bootstrap.OnReady(tab.handleReady)
	reconciler.Restore(ctx)

	return tab
}

// Start loads the widget for this page view.
func (t *Tab) Start(ctx context.Context) bool {
	return t.Bootstrap.EnsureLoaded(ctx, t.appID)
}

// AdoptPageLoad marks the widget ready after a page reported a script load
// that no pending injection was waiting for. Listeners registered by an
// earlier document are registered again on the new one.
func (t *Tab) AdoptPageLoad(ctx context.Context) bool {
	registered := t.subscribed.Load()
	if !t.Bootstrap.AdoptPageLoad(ctx) {
		return false
	}
	if registered {
		t.subscribeListeners()
	}
	return true
}

func (t *Tab) handleReady() {
	t.subscribe.Do(func() {
		t.subscribeListeners()
		t.subscribed.Store(true)
	})
	t.Reconciler.FlushPending()
}

func (t *Tab) subscribeListeners() {
	t.Facade.Subscribe(domain.EventShow)
	t.Facade.Subscribe(domain.EventMessageSent)
}

// HandleEvent applies a lifecycle event reported by the page. Script load
// outcomes and shutdown acknowledgements belong to the widget host.
func (t *Tab) HandleEvent(ctx context.Context, event domain.WidgetEvent, rawURL string) error {
	switch event {
	case domain.EventShow, domain.EventMessageSent:
		if rawURL != "" {
			t.location.Set(rawURL)
		}
		t.Tracker.HandleWidgetEvent(ctx, event)
	case domain.EventNavigate:
		t.location.Set(rawURL)
		t.Tracker.Navigate(ctx, rawURL)
	case domain.EventLocation:
		t.location.Set(rawURL)
	case domain.EventBooted:
		t.Bootstrap.AckBoot()
	case domain.EventReattach:
		t.Bootstrap.Reattach(ctx)
	default:
		return fmt.Errorf("handle widget event %q: unsupported", event)
	}

	return nil
}

func (t *Tab) Location() string {
	return t.location.Current()
}

type tabLocation struct {
	mu  sync.Mutex
	url string
}

func (l *tabLocation) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

func (l *tabLocation) Set(rawURL string) {
	if rawURL == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.url = rawURL
}
