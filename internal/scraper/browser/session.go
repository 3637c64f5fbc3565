package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

// Config bounds a controller's timing behavior.
type Config struct {
	Headless   bool
	NavTimeout time.Duration
	TypingMin  time.Duration
	TypingMax  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Headless:   true,
		NavTimeout: 40 * time.Second,
		TypingMin:  50 * time.Millisecond,
		TypingMax:  150 * time.Millisecond,
	}
}

// Session is one live browser against one portal. It is owned by exactly
// one Controller and must reach StateTerminated on every exit path.
type Session struct {
	ID    string
	Site  bank.SiteCode
	State bank.LoginState

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
}

// Page exposes the session's top-level page for frame resolution.
func (s *Session) Page() *rod.Page { return s.page }

// Controller drives one authenticated session against one site. All calls
// against a session are strictly sequential; a Controller is never shared.
type Controller struct {
	playbook bank.SitePlaybook
	fp       Fingerprint
	cfg      Config
	log      zerolog.Logger
}

func NewController(pb bank.SitePlaybook, fp Fingerprint, cfg Config, log zerolog.Logger) *Controller {
	return &Controller{
		playbook: pb,
		fp:       fp,
		cfg:      cfg,
		log:      log.With().Str("site", string(pb.Code())).Str("profile", fp.Name).Logger(),
	}
}

// Open launches an isolated browser configured with the controller's
// fingerprint: viewport, user agent, locale/timezone, extra headers,
// evasion init script and seeded cookies.
func (c *Controller) Open(ctx context.Context) (*Session, error) {
	l := launcher.New().
		Headless(c.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("lang", c.fp.Locale)

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bank.ErrLaunch, err)
	}

	s := &Session{
		ID:       uuid.NewString(),
		Site:     c.playbook.Code(),
		launcher: l,
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("%w: connect: %v", bank.ErrLaunch, err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		c.Close(s)
		return nil, fmt.Errorf("%w: stealth page: %v", bank.ErrLaunch, err)
	}
	s.page = page

	if err := c.applyFingerprint(s); err != nil {
		c.Close(s)
		return nil, err
	}

	c.log.Debug().Str("session_id", s.ID).Msg("browser session opened")
	return s, nil
}

func (c *Controller) applyFingerprint(s *Session) error {
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: c.fp.UserAgent,
		Platform:  c.fp.Platform,
	}); err != nil {
		return fmt.Errorf("%w: user agent: %v", bank.ErrLaunch, err)
	}

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.fp.ViewportWidth,
		Height:            c.fp.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("%w: viewport: %v", bank.ErrLaunch, err)
	}

	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: c.fp.Timezone}).Call(s.page); err != nil {
		c.log.Warn().Err(err).Msg("timezone override not applied")
	}

	var headers []string
	for k, v := range c.fp.Headers {
		headers = append(headers, k, v)
	}
	if len(headers) > 0 {
		if _, err := s.page.SetExtraHeaders(headers); err != nil {
			return fmt.Errorf("%w: headers: %v", bank.ErrLaunch, err)
		}
	}

	if _, err := s.page.EvalOnNewDocument(c.fp.InitScript()); err != nil {
		return fmt.Errorf("%w: init script: %v", bank.ErrLaunch, err)
	}

	domain := c.playbook.CookieDomain()
	if domain != "" {
		err := s.browser.SetCookies([]*proto.NetworkCookieParam{
			{Name: "session_id", Value: s.ID, Domain: domain, Path: "/"},
			{Name: "region", Value: "CL", Domain: domain, Path: "/"},
			{Name: "timezone", Value: c.fp.Timezone, Domain: domain, Path: "/"},
		})
		if err != nil {
			c.log.Warn().Err(err).Msg("seed cookies not applied")
		}
	}

	return nil
}

// Login navigates to the entry URL, resolves the login frame, fills the
// credential fields with human-paced typing and submits. A security
// lockout is a result value, never an error.
func (c *Controller) Login(ctx context.Context, s *Session, acct bank.Account) (bank.LoginState, error) {
	if err := s.page.Navigate(c.playbook.EntryURL()); err != nil {
		return "", &bank.ScraperError{Site: s.Site, Operation: "Login", Cause: err, Details: "navigate entry url"}
	}
	_ = s.page.WaitLoad()
	_ = s.page.WaitDOMStable(time.Second, 0.1)
	s.State = bank.StateAnonymousNavigated

	frame := s.page
	loginRef := c.playbook.LoginFramePattern()
	if loginRef != "" {
		f, err := ResolveFrame(ctx, s.page, loginRef, c.cfg.NavTimeout)
		if err != nil {
			return "", &bank.ScraperError{Site: s.Site, Operation: "Login", Cause: err, Details: "login frame"}
		}
		frame = f
	}
	s.State = bank.StateReady

	sel := c.playbook.Login()
	fields := []struct{ selector, value string }{
		{sel.CompanyInput, acct.CompanyID},
		{sel.PersonInput, acct.PersonID},
		{sel.SecretInput, acct.Secret},
	}
	for _, f := range fields {
		if f.selector == "" {
			continue
		}
		if err := c.fillField(frame, f.selector, f.value); err != nil {
			return "", &bank.ScraperError{Site: s.Site, Operation: "Login", Cause: err, Details: f.selector}
		}
	}
	s.State = bank.StateCredentialsEntered

	if _, err := ClickWithRetry(ctx, s.page, frame, sel.SubmitButton, loginRef, 3); err != nil {
		return "", &bank.ScraperError{Site: s.Site, Operation: "Login", Cause: err, Details: "submit"}
	}

	_ = s.page.WaitLoad()
	sleepCtx(ctx, 3*time.Second)

	body := c.bodyText(s.page)
	if ContainsLockoutPhrase(body, c.playbook.LockoutPhrases()) {
		s.State = bank.StateSecurityBlocked
		c.log.Warn().Str("session_id", s.ID).Msg("security lockout detected after submit")
		return bank.StateSecurityBlocked, nil
	}

	s.State = bank.StateAuthenticated
	c.log.Info().Str("session_id", s.ID).Msg("login successful")
	return bank.StateAuthenticated, nil
}

func (c *Controller) fillField(frame *rod.Page, selector, value string) error {
	el, err := Find(frame, selector, 7*time.Second)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	_ = el.SelectAllText()
	if err := el.Input(""); err != nil {
		return err
	}
	return TypeHuman(el, value, c.cfg.TypingMin, c.cfg.TypingMax)
}

// bodyText reads the rendered page text, empty on any failure.
func (c *Controller) bodyText(page *rod.Page) string {
	el, err := page.Timeout(5 * time.Second).Element("body")
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return text
}

// RecoverFromLockout clears session cookies and reloads, the first half of
// lockout recovery. The caller owes the site an extended cool-down before
// any further attempt; immediate retries are what escalate blocks to the
// account level.
func (c *Controller) RecoverFromLockout(s *Session) error {
	if err := (proto.NetworkClearBrowserCookies{}).Call(s.page); err != nil {
		return err
	}
	return s.page.Reload()
}

// ResolveDataFrame finds the frame hosting the transfers table.
func (c *Controller) ResolveDataFrame(ctx context.Context, s *Session) (*rod.Page, error) {
	return ResolveFrame(ctx, s.page, c.playbook.DataFramePattern(), c.cfg.NavTimeout)
}

// RunNavigation performs the playbook's navigation steps in order.
func (c *Controller) RunNavigation(ctx context.Context, s *Session) error {
	for _, step := range c.playbook.NavigationSteps() {
		target := s.page
		if step.FramePattern != "" {
			f, err := ResolveFrame(ctx, s.page, step.FramePattern, c.cfg.NavTimeout)
			if err != nil {
				return err
			}
			target = f
		}
		if _, err := ClickWithRetry(ctx, s.page, target, step.Selector, step.FramePattern, 3); err != nil {
			return err
		}
		sleepCtx(ctx, 3*time.Second)
	}
	return nil
}

// Logout is a best-effort portal sign-out: the data frame first, then the
// top-level page. Failures are ignored; Close still tears everything down.
func (c *Controller) Logout(ctx context.Context, s *Session, frame *rod.Page) {
	selector := c.playbook.LogoutSelector()
	if selector == "" {
		return
	}
	for _, target := range []*rod.Page{frame, s.page} {
		if target == nil {
			continue
		}
		el, err := Find(target, selector, 5*time.Second)
		if err != nil {
			continue
		}
		_ = el.Hover()
		if el.Click(proto.InputMouseButtonLeft, 1) == nil {
			sleepCtx(ctx, 2*time.Second)
			return
		}
	}
}

// Close is the idempotent teardown of page, browser and launcher. It is
// safe to call twice and on sessions that failed mid-login.
func (c *Controller) Close(s *Session) {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			_ = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
		s.State = bank.StateTerminated
		c.log.Debug().Str("session_id", s.ID).Msg("browser session terminated")
	})
}

// ContainsLockoutPhrase reports whether the rendered body text carries any
// of the site's lockout indicators, case-insensitively.
func ContainsLockoutPhrase(body string, phrases []string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
