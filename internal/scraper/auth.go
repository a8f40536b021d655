package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/parser"
)

var loginSuccessIndicators = []string{
	"my account", "dashboard", "logout", "account",
	"profile", "orders", "我的信息", "订单",
}

type Credentials struct {
	LoginURL      string
	Username      string
	Password      string
	UsernameField string
	PasswordField string
}

// Authenticator logs a session into the storefront through its login form.
type Authenticator struct {
	creds  Credentials
	logger *slog.Logger
}

func NewAuthenticator(creds Credentials, logger *slog.Logger) *Authenticator {
	if creds.UsernameField == "" {
		creds.UsernameField = "email"
	}
	if creds.PasswordField == "" {
		creds.PasswordField = "password"
	}
	return &Authenticator{
		creds:  creds,
		logger: logger.With("component", "authenticator"),
	}
}

func (a *Authenticator) Enabled() bool {
	return a.creds.Username != "" && a.creds.Password != ""
}

// Login submits the login form. Every failure wraps ErrAuthentication.
func (a *Authenticator) Login(ctx context.Context, session Fetcher) error {
	if !a.Enabled() {
		a.logger.Warn("no credentials configured, continuing without login")
		return nil
	}

	a.logger.Info("logging in", "url", a.creds.LoginURL)

	page, err := session.Fetch(ctx, a.creds.LoginURL)
	if err != nil {
		return fmt.Errorf("%w: failed to load login page: %v", ErrAuthentication, err)
	}
	if !page.OK() {
		return fmt.Errorf("%w: login page returned status %d", ErrAuthentication, page.StatusCode)
	}

	action, fields, err := a.buildForm(page.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	resp, err := session.SubmitForm(ctx, action, fields)
	if err != nil {
		return fmt.Errorf("%w: failed to submit login form: %v", ErrAuthentication, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: login returned status %d", ErrAuthentication, resp.StatusCode)
	}

	body := strings.ToLower(resp.Body)
	for _, indicator := range loginSuccessIndicators {
		if strings.Contains(body, indicator) {
			a.logger.Info("login succeeded")
			return nil
		}
	}

	return fmt.Errorf("%w: no logged-in marker in response", ErrAuthentication)
}

func (a *Authenticator) buildForm(html string) (string, url.Values, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse login page: %w", err)
	}

	form := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return strings.EqualFold(f.AttrOr("method", ""), "post")
	}).First()
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}
	if form.Length() == 0 {
		return "", nil, fmt.Errorf("login form not found")
	}

	fields := url.Values{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, input *goquery.Selection) {
		if name := input.AttrOr("name", ""); name != "" {
			fields.Set(name, input.AttrOr("value", ""))
		}
	})
	fields.Set(a.creds.UsernameField, a.creds.Username)
	fields.Set(a.creds.PasswordField, a.creds.Password)
	fields.Set("rememberme", "1")

	action := a.creds.LoginURL
	if base, err := url.Parse(a.creds.LoginURL); err == nil {
		if resolved, ok := parser.ResolveURL(base, form.AttrOr("action", "")); ok {
			action = resolved
		}
	}

	return action, fields, nil
}
