package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodConfig configures the headless browser prober
type RodConfig struct {
	BaseURL  string
	Headless bool
	Timeout  time.Duration
	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string
}

// RodProber probes pages in a Chromium instance driven by rod
type RodProber struct {
	cfg      RodConfig
	browser  *rod.Browser
	session  *rod.Browser
	launched *launcher.Launcher
}

// storageState is the Playwright storage state file layout
type storageState struct {
	Cookies []struct {
		Name     string  `json:"name"`
		Value    string  `json:"value"`
		Domain   string  `json:"domain"`
		Path     string  `json:"path"`
		Expires  float64 `json:"expires"`
		HTTPOnly bool    `json:"httpOnly"`
		Secure   bool    `json:"secure"`
		SameSite string  `json:"sameSite"`
	} `json:"cookies"`
}

// LoadCookies reads the cookies from a Playwright storage state file
func LoadCookies(path string) ([]*proto.NetworkCookieParam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading storage state: %w", err)
	}
	var state storageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing storage state: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		// Playwright uses -1 for session cookies
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params, nil
}

// RodOpener returns an Opener that starts a RodProber with cfg
func RodOpener(cfg RodConfig) Opener {
	return func(ctx context.Context, storagePath string) (Prober, error) {
		return NewRodProber(ctx, cfg, storagePath)
	}
}

// NewRodProber launches (or connects to) a browser and loads the session
// cookies from storagePath into a fresh incognito context.
func NewRodProber(ctx context.Context, cfg RodConfig, storagePath string) (*RodProber, error) {
	cookies, err := LoadCookies(storagePath)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	p := &RodProber{cfg: cfg}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		p.launched = launcher.New().Headless(cfg.Headless)
		url, err := p.launched.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	p.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := p.browser.Connect(); err != nil {
		p.cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	p.session, err = p.browser.Incognito()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	if len(cookies) > 0 {
		if err := p.session.SetCookies(cookies); err != nil {
			p.Close()
			return nil, fmt.Errorf("set cookies: %w", err)
		}
	}
	return p, nil
}

// Probe opens the probe's page, waits for the network to settle and counts
// the elements matching the selector.
func (p *RodProber) Probe(ctx context.Context, probe Probe) Result {
	page, err := p.session.Page(proto.TargetCreateTarget{})
	if err != nil {
		return ErrorResult(probe, fmt.Errorf("create page: %w", err))
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(p.cfg.Timeout)

	httpStatus := 0
	waitDocument := page.EachEvent(func(ev *proto.NetworkResponseReceived) bool {
		if ev.Type != proto.NetworkResourceTypeDocument || ev.Response == nil {
			return false
		}
		httpStatus = ev.Response.Status
		return true
	})
	waitIdle := page.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)

	if err := page.Navigate(p.url(probe.Path)); err != nil {
		return ErrorResult(probe, fmt.Errorf("navigate: %w", err))
	}
	waitDocument()
	waitIdle()

	elements, err := page.Elements(probe.Selector)
	if err != nil {
		return ErrorResult(probe, fmt.Errorf("query %s: %w", probe.Selector, err))
	}
	return NewResult(probe, httpStatus, len(elements))
}

func (p *RodProber) url(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Close shuts down the browser
func (p *RodProber) Close() error {
	var err error
	if p.browser != nil {
		err = p.browser.Close()
	}
	p.cleanup()
	return err
}

func (p *RodProber) cleanup() {
	if p.launched != nil {
		p.launched.Kill()
		p.launched.Cleanup()
	}
}
