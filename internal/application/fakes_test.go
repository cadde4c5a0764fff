package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports"
	"github.com/stretchr/testify/mock"
)

func mockAnyContext() interface{} {
	return mock.Anything
}

type inMemoryKV struct {
	mu      sync.Mutex
	values  map[string]string
	deletes int
}

func newInMemoryKV() *inMemoryKV {
	return &inMemoryKV{values: map[string]string{}}
}

func (s *inMemoryKV) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("get %q: %w", key, domain.ErrValueNotFound)
	}
	return value, nil
}

func (s *inMemoryKV) deleteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *inMemoryKV) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *inMemoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.deletes++
	return nil
}

type inMemoryVisitors struct {
	mu       sync.Mutex
	visitors map[string]*inMemoryKV
}

func (v *inMemoryVisitors) ForVisitor(visitorID string) ports.KeyValueStore {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.visitors == nil {
		v.visitors = map[string]*inMemoryKV{}
	}
	kv, ok := v.visitors[visitorID]
	if !ok {
		kv = newInMemoryKV()
		v.visitors[visitorID] = kv
	}
	return kv
}

type inMemoryContacts struct {
	mu          sync.Mutex
	submissions []domain.ContactSubmission
}

func (r *inMemoryContacts) Save(_ context.Context, submission domain.ContactSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, submission)
	return nil
}

func (r *inMemoryContacts) List(_ context.Context) ([]domain.ContactSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ContactSubmission(nil), r.submissions...), nil
}

// fakeHost records everything the application asks of the page.
type fakeHost struct {
	mu         sync.Mutex
	entryPoint bool
	installs   int
	seeded     []domain.Settings
	scripts    []string
	callbacks  ports.ScriptCallbacks
	commands   []domain.WidgetCommand
}

func (h *fakeHost) HasEntryPoint() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entryPoint
}

func (h *fakeHost) InstallQueue() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entryPoint = true
	h.installs++
}

func (h *fakeHost) RemoveEntryPoint() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entryPoint = false
}

func (h *fakeHost) SeedSettings(settings domain.Settings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seeded = append(h.seeded, settings.Clone())
}

func (h *fakeHost) InjectScript(src string, callbacks ports.ScriptCallbacks) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts = append(h.scripts, src)
	h.callbacks = callbacks
}

func (h *fakeHost) Dispatch(cmd domain.WidgetCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
}

func (h *fakeHost) load() {
	h.mu.Lock()
	onLoad := h.callbacks.OnLoad
	h.mu.Unlock()
	onLoad()
}

func (h *fakeHost) fail() {
	h.mu.Lock()
	onError := h.callbacks.OnError
	h.mu.Unlock()
	onError(errors.New("net::ERR_BLOCKED_BY_CLIENT"))
}

func (h *fakeHost) sent() []domain.WidgetCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.WidgetCommand(nil), h.commands...)
}

func (h *fakeHost) verbs() []domain.Verb {
	var verbs []domain.Verb
	for _, cmd := range h.sent() {
		verbs = append(verbs, cmd.Verb)
	}
	return verbs
}

func (h *fakeHost) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = nil
}

// notifyingHost can acknowledge a widget shutdown.
type notifyingHost struct {
	fakeHost
	onShutdown []func()
}

func (h *notifyingHost) OnShutdownComplete(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onShutdown = append(h.onShutdown, fn)
}

func (h *notifyingHost) completeShutdown() {
	h.mu.Lock()
	callbacks := h.onShutdown
	h.onShutdown = nil
	h.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, fn)
	return func() bool { return false }
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type tabFixture struct {
	tab       *Tab
	kv        *inMemoryKV
	host      *notifyingHost
	scheduler *manualScheduler
}

func newTabFixture(initialURL string) *tabFixture {
	return newTabFixtureWithKV(newInMemoryKV(), initialURL)
}

func newTabFixtureWithKV(kv *inMemoryKV, initialURL string) *tabFixture {
	host := &notifyingHost{}
	scheduler := &manualScheduler{}
	tab := NewTab(context.Background(), TabConfig{
		AppID:      "app-123",
		APIBase:    "https://api-iam.intercom.io",
		InitialURL: initialURL,
	}, TabDeps{
		Storage:   kv,
		Host:      host,
		Clock:     fixedClock{now: testNow},
		Scheduler: scheduler,
	})

	return &tabFixture{tab: tab, kv: kv, host: host, scheduler: scheduler}
}

// ready loads the widget and forgets the commands issued while loading.
func (f *tabFixture) ready() *tabFixture {
	f.tab.Start(context.Background())
	f.host.load()
	f.host.reset()
	return f
}
