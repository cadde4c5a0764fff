package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"

	"github.com/bnema/stellar-site/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	pageHome          = "home"
	pageContact       = "contact"
	pageLogin         = "login"
	pageSignUp        = "signup"
	pageResetPassword = "reset_password"
)

var pageTitles = map[string]string{
	pageHome:          "Home",
	pageContact:       "Contact",
	pageLogin:         "Log In",
	pageSignUp:        "Create Account",
	pageResetPassword: "Reset Password",
}

// widgetView is the page data the widget relay script is rendered from.
// html/template encodes Settings and Commands as JSON inside the script.
type widgetView struct {
	Enabled    bool
	Settings   domain.Settings
	ScriptSrc  string
	Commands   []domain.WidgetCommand
	// Listening re-registers the show and message listeners a previous
	// page of the same visit already subscribed.
	Listening  bool
	EventsPath string
	PollMillis int64
}

type pageView struct {
	Title  string
	User   *domain.AuthUser
	Error  string
	Notice string
	Next   string
	Form   map[string]string
	Widget widgetView
}

// Greeting is the header name of the signed-in user.
func (v pageView) Greeting() string {
	if v.User == nil {
		return ""
	}
	local, _, _ := strings.Cut(v.User.Email, "@")
	if local == "" {
		return "User"
	}
	return local
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	pages := make(map[string]*template.Template, len(pageTitles))
	for name := range pageTitles {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &renderer{pages: pages}, nil
}

// execute renders a page in full so a template error never leaves a
// half-written response.
func (r *renderer) execute(name string, view pageView) ([]byte, error) {
	tmpl, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("render %s: unknown page", name)
	}
	if view.Title == "" {
		view.Title = pageTitles[name]
	}
	if view.Form == nil {
		view.Form = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", view); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
