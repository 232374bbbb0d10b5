// Package linkedin drives a real browser session against LinkedIn profile
// pages. Each Session is bound to exactly one scraper account; rotating
// accounts means closing the session and opening a new one.
package linkedin

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"liscraper/pkg/auth"
	"liscraper/pkg/config"
	"liscraper/pkg/errors"
	"liscraper/pkg/logger"
	"liscraper/pkg/pacing"
)

const (
	loginURL = "https://www.linkedin.com/login"
	feedURL  = "https://www.linkedin.com/feed/"
)

// Session is one logged-in browser bound to a single scraper account.
type Session struct {
	cred     auth.Credential
	cfg      config.ScraperConfig
	pace     pacing.Sampler
	log      logger.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewSession launches a browser for the given account. The session is not
// logged in until Login is called.
func NewSession(cred auth.Credential, cfg config.ScraperConfig, pace pacing.Sampler) (*Session, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, errors.Wrap(errors.KindFatal, "launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, errors.Wrap(errors.KindFatal, "connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, errors.Wrap(errors.KindFatal, "open page", err)
	}

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			_ = browser.Close()
			l.Cleanup()
			return nil, errors.Wrap(errors.KindFatal, "set user agent", err)
		}
	}

	return &Session{
		cred:     cred,
		cfg:      cfg,
		pace:     pace,
		log:      logger.GetLogger().WithField("account", cred.Email),
		launcher: l,
		browser:  browser,
		page:     page,
	}, nil
}

// AccountEmail returns the email of the account this session belongs to.
func (s *Session) AccountEmail() string {
	return s.cred.Email
}

// Login signs the session's account in. A checkpoint page during login
// returns a checkpoint error so the caller flags the account; wrong
// credentials or an unexpected landing page return a login error.
func (s *Session) Login(ctx context.Context) error {
	if err := s.navigate(ctx, loginURL); err != nil {
		return err
	}
	if err := s.pace.Delay(ctx); err != nil {
		return err
	}

	if err := s.fill(ctx, "#username", s.cred.Email); err != nil {
		return errors.Wrap(errors.KindLogin, "fill email field", err)
	}
	if err := s.pace.DelayBetween(ctx, time.Second, 3*time.Second); err != nil {
		return err
	}
	if err := s.fill(ctx, "#password", s.cred.Password); err != nil {
		return errors.Wrap(errors.KindLogin, "fill password field", err)
	}
	if err := s.pace.DelayBetween(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}

	submit, err := s.page.Context(ctx).Element(`button[type="submit"]`)
	if err != nil {
		return errors.Wrap(errors.KindLogin, "find submit button", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errors.Wrap(errors.KindLogin, "submit login form", err)
	}

	if err := s.page.Context(ctx).WaitLoad(); err != nil {
		return errors.Transient("wait for post-login page", err)
	}
	if err := s.pace.Delay(ctx); err != nil {
		return err
	}

	landed := s.currentURL()
	if isCheckpointURL(landed) {
		return errors.Checkpoint("login redirected to security checkpoint")
	}
	if strings.Contains(landed, "/login") || strings.Contains(landed, "/uas/") {
		return errors.Login("still on login page, credentials likely rejected")
	}

	s.log.Info("Session logged in")
	return nil
}

// Close tears the browser down. Always safe to call, including after a
// failed login.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	return err
}

// navigate drives the page to a URL and waits for it to load. Failures are
// transient: the page may simply not have loaded in time.
func (s *Session) navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	if err := page.Navigate(url); err != nil {
		return errors.Transient("navigate to "+url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return errors.Transient("wait for page load", err)
	}
	return nil
}

// fill types a value into the input matching the selector.
func (s *Session) fill(ctx context.Context, selector, value string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

// currentURL returns the page's current location, empty on failure.
func (s *Session) currentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// isCheckpointURL reports whether a URL is one of LinkedIn's anti-bot
// interstitials.
func isCheckpointURL(url string) bool {
	return strings.Contains(url, "checkpoint") || strings.Contains(url, "challenge")
}
