package web

import (
	"net/http"
	"time"

	"github.com/bnema/stellar-site/internal/application"
	"github.com/google/uuid"
)

const (
	VisitorCookie   = "stellar_visitor"
	SessionCookie   = "stellar_session"
	visitorLifetime = 365 * 24 * time.Hour
)

func secureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// visitorID returns the visitor cookie value, issuing a new id when the
// cookie is missing or unusable.
func visitorID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil && application.VisitorIDValid(c.Value) {
			return c.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secureRequest(r),
	})
	// Later reads in the same request see the new id.
	r.AddCookie(&http.Cookie{Name: VisitorCookie, Value: id})
	return id
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secureRequest(r),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
