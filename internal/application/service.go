package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
)

var ErrInvalidVisitorID = errors.New("invalid visitor id")

// VisitorService inspects and edits stored visitor sessions outside a page
// view.
type VisitorService struct {
	storage   ports.VisitorStorage
	clock     ports.Clock
	tabConfig TabConfig
	logger    *logger.Logger
}

func NewVisitorService(storage ports.VisitorStorage, cfg TabConfig, clock ports.Clock, log *logger.Logger) *VisitorService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &VisitorService{
		storage:   storage,
		clock:     clock,
		tabConfig: cfg,
		logger:    log,
	}
}

func (s *VisitorService) GetStatus(ctx context.Context, visitorID string) (SessionStatus, error) {
	if !VisitorIDValid(visitorID) {
		return SessionStatus{}, fmt.Errorf("get session status %q: %w", visitorID, ErrInvalidVisitorID)
	}

	snapshot, ok := s.tab(ctx, visitorID).Reconciler.Restore(ctx)
	if !ok {
		return SessionStatus{}, fmt.Errorf("get session status %q: %w", visitorID, domain.ErrSnapshotNotFound)
	}

	return newSessionStatus(visitorID, snapshot), nil
}

// Identify merges an identity into a stored session. The update reaches the
// widget on the visitor's next page view through the seeded settings.
func (s *VisitorService) Identify(ctx context.Context, cmd IdentifyCommand) (SessionStatus, error) {
	if !VisitorIDValid(cmd.VisitorID) {
		return SessionStatus{}, fmt.Errorf("identify visitor %q: %w", cmd.VisitorID, ErrInvalidVisitorID)
	}

	snapshot, err := s.tab(ctx, cmd.VisitorID).Reconciler.Identify(ctx, cmd.Identity)
	if err != nil {
		return SessionStatus{}, err
	}

	return newSessionStatus(cmd.VisitorID, snapshot), nil
}

func (s *VisitorService) Clear(ctx context.Context, cmd ClearSessionCommand) error {
	if !VisitorIDValid(cmd.VisitorID) {
		return fmt.Errorf("clear session %q: %w", cmd.VisitorID, ErrInvalidVisitorID)
	}

	if err := s.tab(ctx, cmd.VisitorID).Reconciler.Reset(ctx); err != nil {
		return fmt.Errorf("clear session %q: %w", cmd.VisitorID, err)
	}
	return nil
}

func (s *VisitorService) tab(ctx context.Context, visitorID string) *Tab {
	return NewTab(ctx, s.tabConfig, TabDeps{
		Storage: s.storage.ForVisitor(visitorID),
		Host:    detachedHost{},
		Clock:   s.clock,
		Logger:  s.logger.With("visitor_id", visitorID),
	})
}

// detachedHost stands in for a page without the widget.
type detachedHost struct{}

func (detachedHost) HasEntryPoint() bool { return false }
func (detachedHost) InstallQueue() {}
func (detachedHost) RemoveEntryPoint() {}
func (detachedHost) SeedSettings(domain.Settings) {}
func (detachedHost) InjectScript(string, ports.ScriptCallbacks) {}
func (detachedHost) Dispatch(domain.WidgetCommand) {}
