package rackhost

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/metrics"
)

const (
	csrfField      = "rackhost-csrf"
	defaultTimeout = 30 * time.Second
)

func init() {
	dns.Register("rackhost", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider by driving the Rackhost web console.
// A Provider owns one cookie session; create a new one per update cycle.
type Provider struct {
	baseURL  string
	email    string
	password string
	client   *http.Client
	limiter  *rate.Limiter
	backoff  wait.Backoff
	log      logr.Logger
}

// New creates a Rackhost console client from the given settings map.
// Required settings: base_url, email, password.
// Optional settings: http_proxy, https_proxy, timeout (default 30s),
// rate_limit (requests per second, default unlimited), skip_tls_verify.
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		return nil, fmt.Errorf("rackhost: missing required setting 'base_url'")
	}
	email := settings["email"]
	if email == "" {
		return nil, fmt.Errorf("rackhost: missing required setting 'email'")
	}
	password := settings["password"]
	if password == "" {
		return nil, fmt.Errorf("rackhost: missing required setting 'password'")
	}

	timeout := defaultTimeout
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("rackhost: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	limit := rate.Inf
	if v := settings["rate_limit"]; v != "" && v != "0" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("rackhost: invalid rate_limit %q", v)
		}
		limit = rate.Limit(parsed)
	}

	proxy, err := proxyFunc(settings["http_proxy"], settings["https_proxy"])
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("rackhost: cookie jar: %w", err)
	}

	return &Provider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		client:   &http.Client{Transport: transport, Jar: jar, Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		backoff:  retry.DefaultBackoff,
		log:      log,
	}, nil
}

// proxyFunc routes requests through the proxy configured for their scheme.
// Without any proxy setting requests go direct.
func proxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	parse := func(raw string) (*url.URL, error) {
		if raw == "" {
			return nil, nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("rackhost: invalid proxy %q: %w", raw, err)
		}
		return u, nil
	}
	httpURL, err := parse(httpProxy)
	if err != nil {
		return nil, err
	}
	httpsURL, err := parse(httpsProxy)
	if err != nil {
		return nil, err
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" {
			return httpsURL, nil
		}
		return httpURL, nil
	}, nil
}

// get fetches a console page, retrying unreachable failures with backoff.
// POSTs never go through here.
func (p *Provider) get(ctx context.Context, path string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.OnError(p.backoff, func(err error) bool {
		return errors.Is(err, dns.ErrUnreachable) && ctx.Err() == nil
	}, func() error {
		var err error
		doc, err = p.do(ctx, http.MethodGet, path, nil)
		return err
	})
	return doc, err
}

// page fetches a console page that is only rendered for a logged-in session.
func (p *Provider) page(ctx context.Context, path string) (*goquery.Document, error) {
	doc, err := p.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if loginFormShown(doc) {
		return nil, fmt.Errorf("rackhost: GET %s: session is not logged in: %w", path, dns.ErrAuthFailed)
	}
	return doc, nil
}

// post submits a console form with the given CSRF token and verifies the
// console accepted it. POSTs are never retried.
func (p *Provider) post(ctx context.Context, path, csrf string, form url.Values) (*goquery.Document, error) {
	form.Set(csrfField, csrf)
	doc, err := p.do(ctx, http.MethodPost, path, form)
	if err != nil {
		return nil, err
	}
	if loginFormShown(doc) {
		return nil, fmt.Errorf("rackhost: POST %s: session is not logged in: %w", path, dns.ErrAuthFailed)
	}
	if msg := validationError(doc); msg != "" {
		return nil, fmt.Errorf("rackhost: POST %s: %s: %w", path, msg, dns.ErrRejected)
	}
	return doc, nil
}

// do builds and executes one request against the console and parses the
// (redirect-followed) response as HTML.
func (p *Provider) do(ctx context.Context, method, path string, form url.Values) (*goquery.Document, error) {
	ctx, span := otel.Tracer("rackhost-ddns").Start(ctx, "rackhost."+method)
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	doc, err := p.roundTrip(ctx, method, path, form)
	result := "ok"
	if err != nil {
		result = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ProviderRequests.WithLabelValues(method, result).Inc()
	return doc, err
}

func (p *Provider) roundTrip(ctx context.Context, method, path string, form url.Values) (*goquery.Document, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rackhost: %s %s: %w", method, path, err)
	}

	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, p.baseURL+path, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, p.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("rackhost: build request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	metrics.ProviderRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("rackhost: %s %s: %w: %w", method, path, dns.ErrUnreachable, err)
	}
	defer resp.Body.Close()
	p.log.V(1).Info("console request", "method", method, "path", path, "status", resp.StatusCode)

	if err := statusError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("rackhost: %s %s returned status %d: %w", method, path, resp.StatusCode, err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rackhost: %s %s: parse response: %w: %w", method, path, dns.ErrUnreachable, err)
	}
	return doc, nil
}

func statusError(code int) error {
	switch {
	case code >= 500:
		return dns.ErrUnreachable
	case code == http.StatusNotFound:
		return dns.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return dns.ErrAuthFailed
	case code >= 400:
		return dns.ErrRejected
	}
	return nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, dns.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, dns.ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, dns.ErrNotFound):
		return "not_found"
	case errors.Is(err, dns.ErrRejected):
		return "rejected"
	}
	return "error"
}
