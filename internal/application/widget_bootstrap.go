package application

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

const DefaultScriptBaseURL = "https://widget.intercom.io/widget/"

// WidgetBootstrap injects the widget loader at most once per page and owns
// the connection state.
type WidgetBootstrap struct {
	mu          sync.Mutex
	host        ports.WidgetHost
	settings    *SettingsRegistry
	scriptBase  string
	state       domain.ConnectionState
	rebooting   bool
	readyHooks  []func()
	failedHooks []func(error)
	noAppID     sync.Once
	logger      *logger.Logger
}

func NewWidgetBootstrap(host ports.WidgetHost, settings *SettingsRegistry, scriptBaseURL string, log *logger.Logger) *WidgetBootstrap {
	if log == nil {
		log = logger.Nop()
	}
	if scriptBaseURL == "" {
		scriptBaseURL = DefaultScriptBaseURL
	}
	if !strings.HasSuffix(scriptBaseURL, "/") {
		scriptBaseURL += "/"
	}

	return &WidgetBootstrap{
		host:       host,
		settings:   settings,
		scriptBase: scriptBaseURL,
		state:      domain.StateNotLoaded,
		logger:     log,
	}
}

func (b *WidgetBootstrap) State() domain.ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// OnReady registers fn to run every time the widget becomes ready.
func (b *WidgetBootstrap) OnReady(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readyHooks = append(b.readyHooks, fn)
}

func (b *WidgetBootstrap) OnLoadFailed(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failedHooks = append(b.failedHooks, fn)
}

// EnsureLoaded installs the command queue, seeds the settings and injects
// the loader. It reports whether an injection was started. Without an app id
// the widget stays NotLoaded.
func (b *WidgetBootstrap) EnsureLoaded(ctx context.Context, appID string) bool {
	if ctx.Err() != nil {
		return false
	}
	if strings.TrimSpace(appID) == "" {
		b.noAppID.Do(func() {
			b.logger.Warn("widget unavailable", "error", fmt.Errorf("load widget script: %w: no app id", domain.ErrWidgetLoadFailed))
		})
		return false
	}

	b.mu.Lock()
	if b.state != domain.StateNotLoaded || b.host.HasEntryPoint() {
		b.mu.Unlock()
		return false
	}
	b.state = domain.StateLoading
	b.mu.Unlock()

	b.host.InstallQueue()
	// The loader reads the settings the instant it runs, so they are seeded
	// before the script element exists.
	b.host.SeedSettings(b.settings.SetAppID(appID))
	src := b.scriptBase + url.PathEscape(b.settings.Snapshot().AppID)
	b.logger.Debug("injecting widget loader", "src", src)
	b.host.InjectScript(src, ports.ScriptCallbacks{
		OnLoad:  b.handleLoad,
		OnError: b.handleLoadError,
	})

	return true
}

func (b *WidgetBootstrap) handleLoad() {
	b.mu.Lock()
	if b.state != domain.StateLoading {
		b.mu.Unlock()
		return
	}
	b.state = domain.StateReady
	b.rebooting = false
	hooks := append([]func(){}, b.readyHooks...)
	b.mu.Unlock()

	b.logger.Info("widget ready")
	for _, hook := range hooks {
		hook()
	}
}

// AdoptPageLoad accepts a script load reported by a page whose injection
// outcome is no longer pending, such as a page rendered after a failed load
// or after a reboot whose acknowledgement never arrived. A freshly loaded
// page boots from its seeded settings, so a NotLoaded or Loading widget
// becomes Ready. It reports whether the state changed.
func (b *WidgetBootstrap) AdoptPageLoad(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	b.mu.Lock()
	if b.state != domain.StateNotLoaded && b.state != domain.StateLoading {
		b.mu.Unlock()
		return false
	}
	from := b.state
	b.state = domain.StateReady
	b.rebooting = false
	hooks := append([]func(){}, b.readyHooks...)
	b.mu.Unlock()

	if from == domain.StateNotLoaded {
		b.host.InstallQueue()
	}
	b.logger.Debug("widget ready from a later page load", "from", from.String())
	for _, hook := range hooks {
		hook()
	}
	return true
}

func (b *WidgetBootstrap) handleLoadError(cause error) {
	b.mu.Lock()
	if b.state != domain.StateLoading {
		b.mu.Unlock()
		return
	}
	b.state = domain.StateNotLoaded
	hooks := append([]func(error){}, b.failedHooks...)
	b.mu.Unlock()

	err := fmt.Errorf("load widget script: %w", domain.ErrWidgetLoadFailed)
	if cause != nil {
		err = fmt.Errorf("load widget script: %w: %w", domain.ErrWidgetLoadFailed, cause)
	}
	b.logger.Warn("widget unavailable", "error", err)

	b.host.RemoveEntryPoint()
	for _, hook := range hooks {
		hook(err)
	}
}

// BeginShutdown moves a ready widget into ShuttingDown. It returns false
// when there is nothing to shut down.
func (b *WidgetBootstrap) BeginShutdown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != domain.StateReady {
		return false
	}
	b.state = domain.StateShuttingDown
	return true
}

// CompleteReboot moves ShuttingDown to Loading; the widget reports Ready
// again through AckBoot.
func (b *WidgetBootstrap) CompleteReboot() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != domain.StateShuttingDown {
		return false
	}
	b.state = domain.StateLoading
	b.rebooting = true
	return true
}

// AwaitShutdown calls fn once the host acknowledges a completed shutdown.
// It returns false when the host cannot acknowledge.
func (b *WidgetBootstrap) AwaitShutdown(fn func()) bool {
	notifier, ok := b.host.(ports.ShutdownNotifier)
	if !ok {
		return false
	}
	notifier.OnShutdownComplete(fn)
	return true
}

func (b *WidgetBootstrap) AckBoot() bool {
	b.mu.Lock()
	if b.state != domain.StateLoading || !b.rebooting {
		b.mu.Unlock()
		return false
	}
	b.state = domain.StateReady
	b.rebooting = false
	hooks := append([]func(){}, b.readyHooks...)
	b.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	return true
}

// Reattach re-binds the widget activator after a page is restored from the
// browser cache, then pushes the current settings.
func (b *WidgetBootstrap) Reattach(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !b.State().QueueInstalled() || !b.host.HasEntryPoint() {
		return false
	}

	b.host.Dispatch(domain.WidgetCommand{Verb: domain.VerbReattachActivator})
	b.host.Dispatch(domain.WidgetCommand{Verb: domain.VerbUpdate, Args: []any{b.settings.Snapshot()}})
	return true
}
