package ports

import "github.com/bnema/stellar-site/internal/domain"

// ScriptCallbacks receive the outcome of a loader script injection.
type ScriptCallbacks struct {
	OnLoad  func()
	OnError func(err error)
}

// WidgetHost is the page-global surface the messaging widget lives on.
type WidgetHost interface {
	// HasEntryPoint reports whether a callable command dispatcher exists.
	HasEntryPoint() bool
	// InstallQueue installs a stand-in dispatcher that buffers commands in order.
	InstallQueue()
	// RemoveEntryPoint drops the dispatcher so a later load can retry.
	RemoveEntryPoint()
	// SeedSettings publishes the configuration object read by the loader.
	SeedSettings(settings domain.Settings)
	InjectScript(src string, callbacks ScriptCallbacks)
	Dispatch(cmd domain.WidgetCommand)
}

// ShutdownNotifier is implemented by hosts that can acknowledge a completed
// widget shutdown.
type ShutdownNotifier interface {
	OnShutdownComplete(fn func())
}
