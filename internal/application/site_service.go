package application

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/bnema/stellar-site/internal/ports"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const DefaultSignInName = "User"

type SignUpForm struct {
	Name     string
	Email    string
	Password string
	City     string
}

// SiteService runs the page flows that identify visitors.
type SiteService struct {
	contacts  ports.ContactRepository
	overrides map[string]string
	clock     ports.Clock
	sanitizer *bluemonday.Policy
	logger    *logger.Logger
}

// NewSiteService builds the service. overrides maps a normalized email to
// the widget user id used for it.
func NewSiteService(contacts ports.ContactRepository, overrides map[string]string, clock ports.Clock, log *logger.Logger) *SiteService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	normalized := make(map[string]string, len(overrides))
	for email, userID := range overrides {
		if email = domain.NormalizeEmail(email); email != "" && strings.TrimSpace(userID) != "" {
			normalized[email] = strings.TrimSpace(userID)
		}
	}

	return &SiteService{
		contacts:  contacts,
		overrides: normalized,
		clock:     clock,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    log,
	}
}

func (s *SiteService) SubmitContact(ctx context.Context, tab *Tab, form domain.ContactForm, user *domain.AuthUser) (domain.ContactSubmission, error) {
	form = domain.ContactForm{
		Name:    s.clean(form.Name),
		Email:   strings.TrimSpace(form.Email),
		Message: s.clean(form.Message),
	}
	if err := form.Validate(); err != nil {
		return domain.ContactSubmission{}, err
	}

	now := s.clock.Now()
	submission := domain.ContactSubmission{
		ID:        uuid.NewString(),
		Name:      form.Name,
		Email:     form.Email,
		Message:   form.Message,
		UserID:    domain.AnonymousContactUserID,
		CreatedAt: now.UTC(),
	}
	if user != nil && user.UID != "" {
		submission.UserID = user.UID
	}

	if err := s.contacts.Save(ctx, submission); err != nil {
		return domain.ContactSubmission{}, fmt.Errorf("save contact submission: %w", err)
	}

	if _, err := tab.Reconciler.Identify(ctx, domain.PartialIdentity{
		UserID:    domain.NormalizeEmail(form.Email),
		Email:     form.Email,
		Name:      form.Name,
		CreatedAt: now.Unix(),
	}); err != nil {
		s.logger.Warn("contact submitted without identification", "error", err)
	}
	tab.Tracker.Touch(ctx)
	tab.Facade.ComposeMessage(form.ComposedMessage())

	return submission, nil
}

func (s *SiteService) SignUp(ctx context.Context, tab *Tab, auth ports.AuthProvider, form SignUpForm) (domain.AuthUser, error) {
	if strings.TrimSpace(form.Email) == "" || form.Password == "" {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthMissingCredentials, nil)
	}

	user, err := auth.SignUp(ctx, form.Email, form.Password)
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("sign up: %w", err)
	}

	name := strings.TrimSpace(form.Name)
	if name == "" {
		name = user.DisplayName
	}
	partial := domain.PartialIdentity{
		UserID:    s.widgetUserID(form.Email),
		Email:     form.Email,
		Name:      name,
		CreatedAt: s.clock.Now().Unix(),
	}
	if city := strings.TrimSpace(form.City); city != "" {
		partial.CustomAttributes = domain.Attributes{"city": city}
	}

	s.identify(ctx, tab, partial)
	return user, nil
}

func (s *SiteService) SignIn(ctx context.Context, tab *Tab, auth ports.AuthProvider, email, password string) (domain.AuthUser, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.AuthUser{}, domain.NewAuthError(domain.AuthMissingCredentials, nil)
	}

	user, err := auth.SignIn(ctx, email, password)
	if err != nil {
		return domain.AuthUser{}, fmt.Errorf("sign in: %w", err)
	}

	name := user.DisplayName
	if name == "" {
		name = DefaultSignInName
	}
	s.identify(ctx, tab, domain.PartialIdentity{
		UserID:    s.widgetUserID(email),
		Email:     email,
		Name:      name,
		CreatedAt: s.clock.Now().Unix(),
	})

	return user, nil
}

// SignOut ends the session. A tab bound with Bind is reset by its session
// observer, so only unbound tabs are reset here.
func (s *SiteService) SignOut(ctx context.Context, tab *Tab, auth ports.AuthProvider) error {
	if err := auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if tab.sessionBound.Load() {
		return nil
	}
	if err := tab.Reconciler.Reset(ctx); err != nil && !errors.Is(err, domain.ErrStorageUnavailable) {
		return fmt.Errorf("reset visitor: %w", err)
	}
	return nil
}

func (s *SiteService) ResetPassword(ctx context.Context, auth ports.AuthProvider, email string) error {
	if strings.TrimSpace(email) == "" {
		return domain.NewAuthError(domain.AuthMissingCredentials, nil)
	}
	if err := auth.ResetPassword(ctx, email); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// Bind resets the tab's visitor whenever the session ends.
func (s *SiteService) Bind(ctx context.Context, tab *Tab, auth ports.AuthProvider) (unsubscribe func()) {
	var (
		mu       sync.Mutex
		signedIn bool
	)

	tab.sessionBound.Store(true)
	stop := auth.ObserveSession(func(user *domain.AuthUser) {
		mu.Lock()
		wasSignedIn := signedIn
		signedIn = user != nil
		mu.Unlock()

		if wasSignedIn && user == nil {
			if err := tab.Reconciler.Reset(ctx); err != nil {
				s.logger.Warn("reset after sign out", "error", err)
			}
		}
	})

	return func() {
		stop()
		tab.sessionBound.Store(false)
	}
}

func (s *SiteService) widgetUserID(email string) string {
	normalized := domain.NormalizeEmail(email)
	if userID, ok := s.overrides[normalized]; ok {
		return userID
	}
	return normalized
}

func (s *SiteService) identify(ctx context.Context, tab *Tab, partial domain.PartialIdentity) {
	if _, err := tab.Reconciler.Identify(ctx, partial); err != nil {
		s.logger.Warn("visitor not identified", "error", err)
		return
	}
	tab.Tracker.Touch(ctx)
}

// clean drops markup from free text. Entities are decoded again since the
// text is escaped wherever it is rendered.
func (s *SiteService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}
