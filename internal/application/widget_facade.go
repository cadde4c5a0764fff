package application

import (
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

type connectionStateSource interface {
	State() domain.ConnectionState
}

// WidgetFacade forwards commands to the widget's command queue. Every call
// is a no-op returning false while no queue is installed.
type WidgetFacade struct {
	host   ports.WidgetHost
	state  connectionStateSource
	logger *logger.Logger
}

func NewWidgetFacade(host ports.WidgetHost, state connectionStateSource, log *logger.Logger) *WidgetFacade {
	if log == nil {
		log = logger.Nop()
	}
	return &WidgetFacade{host: host, state: state, logger: log}
}

// Ready reports whether the widget has booted and its dispatcher exists.
func (f *WidgetFacade) Ready() bool {
	return f.state.State() == domain.StateReady && f.host.HasEntryPoint()
}

func (f *WidgetFacade) Show() bool {
	return f.forward(domain.VerbShow)
}

func (f *WidgetFacade) Hide() bool {
	return f.forward(domain.VerbHide)
}

func (f *WidgetFacade) ComposeMessage(text string) bool {
	return f.forward(domain.VerbShowNewMessage, text)
}

func (f *WidgetFacade) TrackEvent(name string, metadata map[string]any) bool {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return f.forward(domain.VerbTrackEvent, name, metadata)
}

func (f *WidgetFacade) Update(attributes map[string]any) bool {
	return f.forward(domain.VerbUpdate, attributes)
}

func (f *WidgetFacade) Reboot(settings domain.Settings) bool {
	return f.forward(domain.VerbBoot, settings)
}

func (f *WidgetFacade) Shutdown() bool {
	return f.forward(domain.VerbShutdown)
}

// Subscribe registers the widget listener for event. The widget answers
// through the host's event channel.
func (f *WidgetFacade) Subscribe(event domain.WidgetEvent) bool {
	verb, ok := event.SubscriptionVerb()
	if !ok {
		return false
	}
	return f.forward(verb)
}

func (f *WidgetFacade) ReattachActivator() bool {
	return f.forward(domain.VerbReattachActivator)
}

func (f *WidgetFacade) forward(verb domain.Verb, args ...any) bool {
	if !f.state.State().QueueInstalled() || !f.host.HasEntryPoint() {
		f.logger.Debug("widget command skipped", "verb", string(verb), "state", f.state.State().String())
		return false
	}

	f.host.Dispatch(domain.WidgetCommand{Verb: verb, Args: args})
	return true
}
