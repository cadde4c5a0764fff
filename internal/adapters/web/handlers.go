package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bnema/stellar-site/internal/adapters/widget/page"
	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/domain"
)

const (
	EventsPath = "/widget/events"

	defaultRedirect   = "/home"
	cityCookie        = "user_city"
	unknownCity       = "Unknown"
	minPasswordLength = 6
	maxEventBody      = 4 << 10

	contactThanks    = "Thank you! We'll get back to you soon."
	contactFailed    = "Failed to send message. Please try again."
	resetLinkSent    = "If an account exists for that email, a reset link is on its way."
	passwordMismatch = "Passwords do not match"
)

type eventRequest struct {
	Type  domain.WidgetEvent `json:"type"`
	URL   string             `json:"url"`
	Error string             `json:"error,omitempty"`
}

type eventResponse struct {
	Commands []domain.WidgetCommand `json:"commands"`
}

// enter resolves the visitor and signed-in user of r and returns their live
// visit. Every rendered page is a new document, so the widget bootstrap runs
// again; it is a no-op unless an earlier load failed. A page load on an
// existing visit counts as navigation.
func (s *Server) enter(w http.ResponseWriter, r *http.Request) (*Visit, *domain.AuthUser) {
	id := visitorID(w, r)
	user := s.sessionUser(r)
	pageURL := absoluteURL(r)

	visit, created := s.pool.Acquire(id, user, pageURL)
	if created {
		return visit, user
	}

	visit.Tab.Start(r.Context())
	if r.Method == http.MethodGet {
		if err := visit.Tab.HandleEvent(r.Context(), domain.EventNavigate, pageURL); err != nil {
			s.logger.Warn("record navigation", "error", err)
		}
	}
	return visit, user
}

func (s *Server) sessionUser(r *http.Request) *domain.AuthUser {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	user, err := s.tokens.Parse(c.Value)
	if err != nil {
		s.logger.Debug("ignoring session cookie", "error", err)
		return nil
	}
	return &user
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visit, user := s.enter(w, r)
		view := pageView{User: user}
		if name == pageLogin {
			view.Next = safeRedirect(r.URL.Query().Get("from"))
		}
		s.render(w, http.StatusOK, name, visit, view)
	}
}

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	visit, user := s.enter(w, r)
	form := formValues(r, "name", "email", "message")

	_, err := s.site.SubmitContact(r.Context(), visit.Tab, domain.ContactForm{
		Name:    form["name"],
		Email:   form["email"],
		Message: form["message"],
	}, user)
	switch {
	case errors.Is(err, domain.ErrIncompleteForm):
		s.render(w, http.StatusUnprocessableEntity, pageContact, visit, pageView{User: user, Error: domain.UserMessage(err), Form: form})
	case err != nil:
		s.logger.Error("submit contact", "error", err)
		s.render(w, http.StatusInternalServerError, pageContact, visit, pageView{User: user, Error: contactFailed, Form: form})
	default:
		s.render(w, http.StatusOK, pageContact, visit, pageView{User: user, Notice: contactThanks})
	}
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	visit, user := s.enter(w, r)
	form := formValues(r, "name", "email")
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	fail := func(status int, msg string) {
		s.render(w, status, pageSignUp, visit, pageView{User: user, Error: msg, Form: form})
	}

	switch {
	case form["name"] == "" || form["email"] == "" || password == "" || confirm == "":
		fail(http.StatusUnprocessableEntity, domain.UserMessage(domain.ErrIncompleteForm))
		return
	case password != confirm:
		fail(http.StatusUnprocessableEntity, passwordMismatch)
		return
	case len(password) < minPasswordLength:
		fail(http.StatusUnprocessableEntity, domain.UserMessage(domain.NewAuthError(domain.AuthWeakPassword, nil)))
		return
	}

	created, err := s.site.SignUp(r.Context(), visit.Tab, visit.Auth, application.SignUpForm{
		Name:     form["name"],
		Email:    form["email"],
		Password: password,
		City:     requestCity(r),
	})
	if err != nil {
		s.logAuthFailure("sign up", err)
		fail(authStatus(err), domain.UserMessage(err))
		return
	}

	if !s.startSession(w, r, created) {
		return
	}
	http.Redirect(w, r, defaultRedirect, http.StatusSeeOther)
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	visit, user := s.enter(w, r)
	form := formValues(r, "email")
	next := safeRedirect(r.PostFormValue("next"))

	signedIn, err := s.site.SignIn(r.Context(), visit.Tab, visit.Auth, form["email"], r.PostFormValue("password"))
	if err != nil {
		s.logAuthFailure("sign in", err)
		s.render(w, authStatus(err), pageLogin, visit, pageView{User: user, Error: domain.UserMessage(err), Form: form, Next: next})
		return
	}

	if !s.startSession(w, r, signedIn) {
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	visit, _ := s.enter(w, r)
	if err := s.site.SignOut(r.Context(), visit.Tab, visit.Auth); err != nil {
		s.logger.Error("sign out", "error", err)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	visit, user := s.enter(w, r)
	form := formValues(r, "email")

	err := s.site.ResetPassword(r.Context(), visit.Auth, form["email"])
	var authErr *domain.AuthError
	switch {
	case err == nil, errors.As(err, &authErr) && authErr.Code == domain.AuthUserNotFound:
		// Unknown addresses get the same answer as known ones.
		s.render(w, http.StatusOK, pageResetPassword, visit, pageView{User: user, Notice: resetLinkSent})
	default:
		s.logAuthFailure("reset password", err)
		s.render(w, authStatus(err), pageResetPassword, visit, pageView{User: user, Error: domain.UserMessage(err), Form: form})
	}
}

// widgetEvent relays a lifecycle event from the page and answers with the
// commands queued for it since the last exchange.
func (s *Server) widgetEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event body"})
		return
	}
	if !req.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown event type"})
		return
	}

	id := visitorID(w, r)
	visit, _ := s.pool.Acquire(id, s.sessionUser(r), req.URL)

	var err error
	switch req.Type {
	case domain.EventLoaded:
		err = visit.Host.ScriptLoaded()
		if errors.Is(err, page.ErrNoPendingScript) {
			state := visit.Tab.Bootstrap.State()
			if visit.Tab.AdoptPageLoad(r.Context()) {
				s.logger.Info("widget load adopted from a later page",
					"visitor_id", id, "from", state.String())
				err = nil
			}
		}
	case domain.EventLoadFailed:
		cause := domain.ErrWidgetLoadFailed
		if req.Error != "" {
			cause = fmt.Errorf("%w: %s", domain.ErrWidgetLoadFailed, req.Error)
		}
		err = visit.Host.ScriptFailed(cause)
	case domain.EventShutdownComplete:
		visit.Host.ShutdownComplete()
	default:
		err = visit.Tab.HandleEvent(r.Context(), req.Type, req.URL)
	}
	if err != nil && !errors.Is(err, page.ErrNoPendingScript) {
		s.logger.Warn("widget event", "event", string(req.Type), "error", err)
	}

	commands := visit.Host.Drain()
	if commands == nil {
		commands = []domain.WidgetCommand{}
	}
	writeJSON(w, http.StatusOK, eventResponse{Commands: commands})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "visits": s.pool.Len()})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user domain.AuthUser) bool {
	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("issue session token", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	setSessionCookie(w, r, token, s.tokens.TTL())
	return true
}

func (s *Server) render(w http.ResponseWriter, status int, name string, visit *Visit, view pageView) {
	boot := visit.Host.Boot()
	view.Widget = widgetView{
		Enabled:    boot.ScriptSrc != "",
		Settings:   visit.Tab.Settings.Snapshot(),
		ScriptSrc:  boot.ScriptSrc,
		Commands:   boot.Commands,
		Listening:  visit.Tab.Bootstrap.State() == domain.StateReady,
		EventsPath: EventsPath,
		PollMillis: s.pollInterval.Milliseconds(),
	}

	body, err := s.renderer.execute(name, view)
	if err != nil {
		s.logger.Error("render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) logAuthFailure(op string, err error) {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) && authErr.Code != domain.AuthInternal {
		s.logger.Info(op+" rejected", "code", string(authErr.Code))
		return
	}
	s.logger.Error(op, "error", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return false
	}
	return true
}

func formValues(r *http.Request, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = strings.TrimSpace(r.PostFormValue(name))
	}
	return out
}

func authStatus(err error) int {
	if errors.Is(err, domain.ErrIncompleteForm) {
		return http.StatusUnprocessableEntity
	}
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError
	}
	switch authErr.Code {
	case domain.AuthUserNotFound, domain.AuthWrongPassword:
		return http.StatusUnauthorized
	case domain.AuthEmailAlreadyInUse:
		return http.StatusConflict
	case domain.AuthTooManyRequests:
		return http.StatusTooManyRequests
	case domain.AuthInvalidEmail, domain.AuthWeakPassword, domain.AuthMissingCredentials:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requestCity prefers the submitted city, then the city cookie.
func requestCity(r *http.Request) string {
	if city := strings.TrimSpace(r.PostFormValue("city")); city != "" {
		return city
	}
	if c, err := r.Cookie(cityCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	return unknownCity
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return defaultRedirect
	}
	return target
}

func absoluteURL(r *http.Request) string {
	scheme := "http"
	if secureRequest(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
