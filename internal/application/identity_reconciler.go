package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

const DefaultResetDelay = 100 * time.Millisecond

type ReconcilerOptions struct {
	// ResetDelay bounds how long a reset waits for the widget to confirm
	// shutdown before booting again.
	ResetDelay time.Duration
	Clock      ports.Clock
	Scheduler  ports.Scheduler
}

// IdentityReconciler is the only writer of the visitor's identity snapshot.
type IdentityReconciler struct {
	mu        sync.Mutex
	store     *SessionStore
	settings  *SettingsRegistry
	facade    *WidgetFacade
	bootstrap *WidgetBootstrap
	clock     ports.Clock
	scheduler ports.Scheduler
	delay     time.Duration
	current   domain.IdentitySnapshot
	pending   bool
	logger    *logger.Logger
}

func NewIdentityReconciler(store *SessionStore, settings *SettingsRegistry, facade *WidgetFacade, bootstrap *WidgetBootstrap, opts ReconcilerOptions, log *logger.Logger) *IdentityReconciler {
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = ports.SystemScheduler{}
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	if log == nil {
		log = logger.Nop()
	}

	return &IdentityReconciler{
		store:     store,
		settings:  settings,
		facade:    facade,
		bootstrap: bootstrap,
		clock:     opts.Clock,
		scheduler: opts.Scheduler,
		delay:     opts.ResetDelay,
		logger:    log,
	}
}

// Restore loads the stored snapshot into memory and the settings, as a page
// load does before the widget is seeded.
func (r *IdentityReconciler) Restore(ctx context.Context) (domain.IdentitySnapshot, bool) {
	if ctx.Err() != nil {
		return domain.IdentitySnapshot{}, false
	}

	snapshot, ok := r.store.Load(ctx)
	if !ok {
		return domain.IdentitySnapshot{}, false
	}

	r.mu.Lock()
	r.current = snapshot.Clone()
	r.mu.Unlock()
	r.settings.ApplyIdentity(snapshot)

	return snapshot.Clone(), true
}

func (r *IdentityReconciler) Identify(ctx context.Context, partial domain.PartialIdentity) (domain.IdentitySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdentitySnapshot{}, err
	}

	r.mu.Lock()
	base, _ := r.store.Load(ctx)
	merged, err := domain.MergeIdentity(base, partial, r.clock.Now().Unix())
	if err != nil {
		r.mu.Unlock()
		r.logger.Warn("identify visitor aborted", "error", err)
		return domain.IdentitySnapshot{}, fmt.Errorf("identify visitor: %w", err)
	}

	if err := r.store.Save(ctx, merged); err != nil {
		r.logger.Warn("identity kept in memory only", "user_id", merged.UserID, "error", err)
	}
	r.current = merged.Clone()
	r.settings.ApplyIdentity(merged)

	ready := r.facade.Ready()
	r.pending = !ready
	r.mu.Unlock()

	if ready {
		r.facade.Update(domain.UpdatePayload(merged))
	}
	r.logger.Info("visitor identified", "user_id", merged.UserID, "forwarded", ready)

	return merged.Clone(), nil
}

// FlushPending forwards an identity merged while the widget was not ready.
func (r *IdentityReconciler) FlushPending() bool {
	r.mu.Lock()
	if !r.pending || !r.facade.Ready() {
		r.mu.Unlock()
		return false
	}
	r.pending = false
	snapshot := r.current.Clone()
	r.mu.Unlock()

	if snapshot.UserID == "" {
		return false
	}
	return r.facade.Update(domain.UpdatePayload(snapshot))
}

// RecordPageVisit merges the page attributes of visit into the snapshot.
func (r *IdentityReconciler) RecordPageVisit(ctx context.Context, visit domain.PageVisit) domain.IdentitySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	attrs := visit.Attributes()
	snapshot, ok := r.store.Load(ctx)
	if !ok {
		snapshot = r.current.Clone()
	}
	snapshot.CustomAttributes = snapshot.CustomAttributes.Merge(attrs)

	if err := r.store.Save(ctx, snapshot); err != nil {
		r.logger.Warn("page visit kept in memory only", "page", visit.FormattedPageName, "error", err)
	}
	r.current = snapshot.Clone()
	r.settings.MergeCustomAttributes(attrs)

	return snapshot
}

func (r *IdentityReconciler) Current() domain.IdentitySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

// Reset forgets the visitor. A ready widget is shut down and booted again
// with the cleared settings once the shutdown is acknowledged or the reset
// delay elapses, whichever happens first.
func (r *IdentityReconciler) Reset(ctx context.Context) error {
	r.mu.Lock()
	clearErr := r.store.Clear(ctx)
	r.current = domain.IdentitySnapshot{}
	r.pending = false
	cleared := r.settings.Reset()
	r.mu.Unlock()

	if clearErr != nil {
		r.logger.Warn("reset left stored identity behind", "error", clearErr)
	}

	if !r.bootstrap.BeginShutdown() {
		r.logger.Debug("reset without widget reboot")
		return clearErr
	}

	r.facade.Shutdown()

	var once sync.Once
	reboot := func() {
		once.Do(func() {
			if r.bootstrap.CompleteReboot() {
				r.facade.Reboot(cleared)
				r.logger.Info("widget rebooted after reset")
			}
		})
	}
	r.bootstrap.AwaitShutdown(reboot)
	r.scheduler.AfterFunc(r.delay, reboot)

	return clearErr
}
