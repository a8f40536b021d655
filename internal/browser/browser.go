package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/maltedev/catalog-scraper/internal/fetch"
	"github.com/playwright-community/playwright-go"
)

// Browser is a rendered-page session. Cookies live in one browser context for
// the whole run, so a login carries over to later fetches.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
	Logger         *slog.Logger
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9,it;q=0.8",
		TimezoneID:     "Europe/Rome",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		timeout: opts.Timeout,
		logger:  logger.With("component", "browser"),
	}, nil
}

// Fetch navigates to target and returns the rendered HTML.
func (b *Browser) Fetch(ctx context.Context, target string) (*fetch.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := b.newPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	resp, err := page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.timeout.Milliseconds())),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to navigate to %s: %w", target, err)
	}

	status := 0
	if resp != nil {
		status = resp.Status()
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}

	b.logger.Debug("page rendered", "url", page.URL(), "status", status, "bytes", len(content))

	return &fetch.Response{StatusCode: status, Body: content, URL: page.URL()}, nil
}

// submitScript posts url-encoded fields from inside the page so the browser
// context stores any session cookie the response sets.
const submitScript = `async ([target, body]) => {
	const resp = await fetch(target, {
		method: "POST",
		credentials: "include",
		headers: {"Content-Type": "application/x-www-form-urlencoded"},
		body: body,
	});
	return {status: resp.status, body: await resp.text(), url: resp.url};
}`

// SubmitForm posts fields to target from a page on the same origin.
func (b *Browser) SubmitForm(ctx context.Context, target string, fields url.Values) (*fetch.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := b.newPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	if _, err := page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.timeout.Milliseconds())),
	}); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}

	result, err := page.Evaluate(submitScript, []interface{}{target, fields.Encode()})
	if err != nil {
		return nil, fmt.Errorf("failed to submit form to %s: %w", target, err)
	}

	return decodeSubmitResult(result, target)
}

func decodeSubmitResult(result interface{}, target string) (*fetch.Response, error) {
	m, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected form submit result %T", result)
	}

	resp := &fetch.Response{URL: target}
	switch status := m["status"].(type) {
	case float64:
		resp.StatusCode = int(status)
	case int:
		resp.StatusCode = status
	}
	if body, ok := m["body"].(string); ok {
		resp.Body = body
	}
	if u, ok := m["url"].(string); ok && u != "" {
		resp.URL = u
	}
	return resp, nil
}

func (b *Browser) newPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(b.timeout.Milliseconds()))
	return page, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
