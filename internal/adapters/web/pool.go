package web

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/stellar-site/internal/adapters/widget/page"
	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

const DefaultIdleTTL = 30 * time.Minute

// AuthSessions opens the authentication provider of one browser session,
// already signed in as current when it is non-nil.
type AuthSessions func(current *domain.AuthUser) ports.AuthProvider

type PoolConfig struct {
	Tab          application.TabConfig
	IdleTTL      time.Duration
	PollInterval time.Duration
}

type PoolDeps struct {
	Storage   ports.VisitorStorage
	Site      *application.SiteService
	Sessions  AuthSessions
	Clock     ports.Clock
	Scheduler ports.Scheduler
	Logger    *logger.Logger
}

// Visit is the live page state of one visitor: the widget tab, the host the
// browser drains commands from, and the visitor's auth session.
type Visit struct {
	VisitorID string
	Tab       *application.Tab
	Host      *page.Host
	Auth      ports.AuthProvider

	mu       sync.Mutex
	lastSeen time.Time
	cancel   context.CancelFunc
	unbind   func()
	done     chan struct{}
}

func (v *Visit) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *Visit) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// TabPool keeps one Visit per visitor and evicts visits idle for longer than
// the configured TTL, which stops their location polling.
type TabPool struct {
	cfg    PoolConfig
	deps   PoolDeps
	base   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	visits map[string]*Visit
	wg     sync.WaitGroup
	closed bool
}

func NewTabPool(cfg PoolConfig, deps PoolDeps) *TabPool {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = application.DefaultPollInterval
	}
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = ports.SystemScheduler{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	base, stop := context.WithCancel(context.Background())
	return &TabPool{
		cfg:    cfg,
		deps:   deps,
		base:   base,
		stop:   stop,
		visits: make(map[string]*Visit),
	}
}

// Acquire returns the visitor's live visit, opening one at pageURL when
// none exists. created reports whether this call opened it.
func (p *TabPool) Acquire(visitorID string, user *domain.AuthUser, pageURL string) (visit *Visit, created bool) {
	now := p.deps.Clock.Now()

	p.mu.Lock()
	if existing, ok := p.visits[visitorID]; ok {
		p.mu.Unlock()
		existing.touch(now)
		return existing, false
	}
	p.mu.Unlock()

	fresh := p.open(visitorID, user, pageURL)

	p.mu.Lock()
	if existing, ok := p.visits[visitorID]; ok {
		p.mu.Unlock()
		fresh.unbind()
		existing.touch(now)
		return existing, false
	}
	if p.closed {
		p.mu.Unlock()
		fresh.unbind()
		return fresh, true
	}
	p.visits[visitorID] = fresh
	p.startTracker(fresh)
	p.mu.Unlock()

	fresh.Tab.Start(p.base)
	p.deps.Logger.Debug("visit opened", "visitor_id", visitorID)
	return fresh, true
}

// Lookup returns the live visit without opening one.
func (p *TabPool) Lookup(visitorID string) (*Visit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	visit, ok := p.visits[visitorID]
	if ok {
		visit.touch(p.deps.Clock.Now())
	}
	return visit, ok
}

func (p *TabPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.visits)
}

// Sweep evicts idle visits and returns how many were removed.
func (p *TabPool) Sweep() int {
	cutoff := p.deps.Clock.Now().Add(-p.cfg.IdleTTL)

	p.mu.Lock()
	var idle []*Visit
	for id, visit := range p.visits {
		if visit.idleSince().Before(cutoff) {
			idle = append(idle, visit)
			delete(p.visits, id)
		}
	}
	p.mu.Unlock()

	for _, visit := range idle {
		p.evict(visit)
	}
	if len(idle) > 0 {
		p.deps.Logger.Debug("idle visits evicted", "count", len(idle))
	}
	return len(idle)
}

// Run sweeps every half TTL until ctx is done.
func (p *TabPool) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Sweep()
		}
	}
}

// Close evicts every visit and waits for their trackers to stop.
func (p *TabPool) Close() {
	p.mu.Lock()
	p.closed = true
	visits := make([]*Visit, 0, len(p.visits))
	for id, visit := range p.visits {
		visits = append(visits, visit)
		delete(p.visits, id)
	}
	p.mu.Unlock()

	for _, visit := range visits {
		p.evict(visit)
	}
	p.stop()
	p.wg.Wait()
}

func (p *TabPool) open(visitorID string, user *domain.AuthUser, pageURL string) *Visit {
	log := p.deps.Logger.With("visitor_id", visitorID)
	host := page.NewHost()

	tabCfg := p.cfg.Tab
	tabCfg.InitialURL = pageURL
	tab := application.NewTab(p.base, tabCfg, application.TabDeps{
		Storage:   p.deps.Storage.ForVisitor(visitorID),
		Host:      host,
		Clock:     p.deps.Clock,
		Scheduler: p.deps.Scheduler,
		Logger:    log,
	})

	session := p.deps.Sessions(user)
	visit := &Visit{
		VisitorID: visitorID,
		Tab:       tab,
		Host:      host,
		Auth:      session,
		lastSeen:  p.deps.Clock.Now(),
		cancel:    func() {},
		done:      make(chan struct{}),
	}
	visit.unbind = p.deps.Site.Bind(p.base, tab, session)
	close(visit.done)

	return visit
}

// startTracker must be called with p.mu held.
func (p *TabPool) startTracker(visit *Visit) {
	ctx, cancel := context.WithCancel(p.base)
	done := make(chan struct{})
	visit.cancel = cancel
	visit.done = done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(done)
		visit.Tab.Tracker.Run(ctx, p.cfg.PollInterval)
	}()
}

func (p *TabPool) evict(visit *Visit) {
	visit.cancel()
	<-visit.done
	visit.unbind()
}
