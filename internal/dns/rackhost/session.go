package rackhost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// Login authenticates the session. The console answers a failed login with
// the login form again, so its presence after the POST means the credentials
// were refused.
func (p *Provider) Login(ctx context.Context) error {
	p.log.V(1).Info("logging in", "url", p.baseURL, "email", p.email)

	doc, err := p.get(ctx, "/site/login")
	if err != nil {
		return fmt.Errorf("rackhost: login: %w", err)
	}

	form := url.Values{
		"LoginForm[username]": {p.email},
		"LoginForm[password]": {p.password},
	}
	form.Set(csrfField, ExtractCSRF(doc))

	after, err := p.do(ctx, http.MethodPost, "/site/login", form)
	if err != nil {
		return fmt.Errorf("rackhost: login: %w", err)
	}
	if loginFormShown(after) {
		if msg := validationError(after); msg != "" {
			return fmt.Errorf("rackhost: login rejected: %s: %w", msg, dns.ErrAuthFailed)
		}
		return fmt.Errorf("rackhost: login rejected: %w", dns.ErrAuthFailed)
	}

	p.log.Info("logged in", "email", p.email)
	return nil
}
