// Package page implements the widget host for server-rendered pages. Commands
// are buffered in an outbox that the browser drains through the event
// endpoint, and the browser reports script and shutdown outcomes back.
package page

import (
	"errors"
	"sync"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
)

// MaxOutbox bounds the commands buffered for a browser that stopped polling.
const MaxOutbox = 256

var ErrNoPendingScript = errors.New("no pending widget script")

// BootView is what a rendered page needs to start the widget.
type BootView struct {
	Settings  domain.Settings
	ScriptSrc string
	// Pending is true while the loader script awaits its load outcome.
	Pending   bool
	Commands  []domain.WidgetCommand
}

type Host struct {
	mu         sync.Mutex
	entryPoint bool
	settings   domain.Settings
	scriptSrc  string
	callbacks  *ports.ScriptCallbacks
	outbox     []domain.WidgetCommand
	dropped    int
	onShutdown []func()
}

var (
	_ ports.WidgetHost       = (*Host)(nil)
	_ ports.ShutdownNotifier = (*Host)(nil)
)

func NewHost() *Host {
	return &Host{}
}

func (h *Host) HasEntryPoint() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entryPoint
}

func (h *Host) InstallQueue() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entryPoint = true
}

// RemoveEntryPoint also discards commands nobody will replay.
func (h *Host) RemoveEntryPoint() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entryPoint = false
	h.outbox = nil
}

func (h *Host) SeedSettings(settings domain.Settings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settings = settings.Clone()
}

func (h *Host) InjectScript(src string, callbacks ports.ScriptCallbacks) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scriptSrc = src
	h.callbacks = &callbacks
}

func (h *Host) Dispatch(cmd domain.WidgetCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.entryPoint {
		return
	}
	if len(h.outbox) >= MaxOutbox {
		h.outbox = h.outbox[1:]
		h.dropped++
	}
	h.outbox = append(h.outbox, cmd)
}

func (h *Host) OnShutdownComplete(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onShutdown = append(h.onShutdown, fn)
}

// ScriptLoaded reports that the browser finished loading the injected script.
func (h *Host) ScriptLoaded() error {
	callbacks, err := h.takeCallbacks()
	if err != nil {
		return err
	}
	if callbacks.OnLoad != nil {
		callbacks.OnLoad()
	}
	return nil
}

// ScriptFailed reports that the injected script could not be loaded.
func (h *Host) ScriptFailed(cause error) error {
	callbacks, err := h.takeCallbacks()
	if err != nil {
		return err
	}
	if callbacks.OnError != nil {
		callbacks.OnError(cause)
	}
	return nil
}

// ShutdownComplete runs the hooks registered since the last acknowledgement.
func (h *Host) ShutdownComplete() {
	h.mu.Lock()
	hooks := h.onShutdown
	h.onShutdown = nil
	h.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Drain returns and clears the buffered commands in dispatch order.
func (h *Host) Drain() []domain.WidgetCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.outbox
	h.outbox = nil
	return out
}

// Dropped reports how many commands were discarded because the outbox was full.
func (h *Host) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Boot snapshots the seeded settings and drains pending commands.
func (h *Host) Boot() BootView {
	h.mu.Lock()
	defer h.mu.Unlock()

	view := BootView{
		Settings:  h.settings.Clone(),
		ScriptSrc: h.scriptSrc,
		Pending:   h.callbacks != nil,
		Commands:  h.outbox,
	}
	h.outbox = nil
	return view
}

func (h *Host) takeCallbacks() (ports.ScriptCallbacks, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.callbacks == nil {
		return ports.ScriptCallbacks{}, ErrNoPendingScript
	}
	callbacks := *h.callbacks
	h.callbacks = nil
	return callbacks, nil
}
