// Package probe opens a site page in headless Chrome and reports what the
// messenger widget sees there.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/stellar-site/internal/platform/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	DefaultTimeout      = 30 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

const inspectScript = `() => JSON.stringify({
	title: document.title,
	entry_point: typeof window.Intercom === "function",
	settings: window.intercomSettings || null,
	script_src: (document.querySelector("script[data-widget-loader]") || {}).src || ""
})`

type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome. Empty
	// launches a local headless browser.
	RemoteURL string
	Timeout   time.Duration
}

type Result struct {
	URL           string         `json:"url"`
	Title         string         `json:"title"`
	HasEntryPoint bool           `json:"entry_point"`
	Settings      map[string]any `json:"settings"`
	ScriptSrc     string         `json:"script_src"`
	Elapsed       time.Duration  `json:"-"`
}

type Prober struct {
	cfg    Config
	logger *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Prober{cfg: cfg, logger: log}
}

// Probe loads pageURL and waits until the widget entry point exists or the
// timeout passes. A page without the widget is a result, not an error.
func (p *Prober) Probe(ctx context.Context, pageURL string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	started := time.Now()
	controlURL := p.cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		defer l.Cleanup()

		u, err := l.Launch()
		if err != nil {
			return Result{}, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		p.logger.Debug("launched local chrome", "control_url", controlURL)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Result{}, fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", pageURL, err)
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return Result{}, fmt.Errorf("wait for %s: %w", pageURL, err)
	}

	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		result, err := inspect(page)
		if err != nil {
			return Result{}, err
		}
		result.URL = pageURL
		result.Elapsed = time.Since(started)
		if result.HasEntryPoint {
			return result, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				p.logger.Warn("widget entry point never appeared", "url", pageURL)
				return result, nil
			}
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func inspect(page *rod.Page) (Result, error) {
	res, err := page.Eval(inspectScript)
	if err != nil {
		return Result{}, fmt.Errorf("inspect page: %w", err)
	}
	return decodeResult(res.Value.Str())
}

func decodeResult(raw string) (Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, fmt.Errorf("decode page inspection: %w", err)
	}
	return result, nil
}
