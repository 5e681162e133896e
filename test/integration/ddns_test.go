package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logrtesting "github.com/go-logr/logr/testing"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/cache"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
	_ "github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns/providers"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns/rackhost/rackhosttest"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/server"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/updater"
)

const (
	routerUser     = "router"
	routerPassword = "s3cret"
)

type stack struct {
	console  *rackhosttest.Console
	zoneID   string
	homeID   string
	store    *cache.Store
	callback *httptest.Server
	path     string
}

// newStack wires the fake console, the registered rackhost provider, a file
// cache bootstrapped from the console and the callback server.
func newStack(t *testing.T, backend string) *stack {
	t.Helper()

	console := rackhosttest.NewConsole("user@example.com", "secret")
	zoneID := console.AddZone("example.com")
	console.AddRecord(zoneID, "", "A", 3600, "1.1.1.1")
	homeID := console.AddRecord(zoneID, "home", "A", 300, "1.2.3.4")
	other := console.AddZone("example.org")
	console.AddRecord(other, "www", "CNAME", 600, "example.com")

	consoleSrv := httptest.NewServer(console)
	t.Cleanup(consoleSrv.Close)

	log := logrtesting.NewTestLogger(t)
	newProvider, err := dns.Lookup("rackhost", log.WithName("dns-rackhost"), map[string]string{
		"base_url": consoleSrv.URL,
		"email":    "user@example.com",
		"password": "secret",
	})
	if err != nil {
		t.Fatalf("failed to look up provider: %v", err)
	}

	var b cache.Backend
	path := filepath.Join(t.TempDir(), "cache."+backend)
	switch backend {
	case "db":
		bolt, err := cache.OpenBoltBackend(path)
		if err != nil {
			t.Fatalf("failed to open bolt backend: %v", err)
		}
		b = bolt
	default:
		b = cache.NewFileBackend(path)
	}

	store, err := cache.Open(context.Background(), b, func(ctx context.Context) ([]cache.Entry, error) {
		p, err := newProvider()
		if err != nil {
			return nil, err
		}
		if err := p.Login(ctx); err != nil {
			return nil, err
		}
		return cache.Bootstrap(ctx, p)
	}, log.WithName("cache"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := &server.Server{
		Username: routerUser,
		Password: routerPassword,
		Updater:  &updater.Updater{NewProvider: newProvider, Cache: store, Log: log.WithName("updater")},
		Log:      log.WithName("server"),
	}
	callback := httptest.NewServer(srv)
	t.Cleanup(callback.Close)

	return &stack{console: console, zoneID: zoneID, homeID: homeID, store: store, callback: callback, path: path}
}

func (s *stack) call(t *testing.T, user, password, rawQuery string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.callback.URL+"/nic/update?"+rawQuery, nil)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestBootstrap(t *testing.T) {
	s := newStack(t, "json")

	entries := s.store.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (total record count), got %d: %+v", len(entries), entries)
	}
	if got := s.console.CountCalls("GET /dnsZone/"); got != 2 {
		t.Errorf("expected one record listing per zone, got %d", got)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	if !strings.Contains(string(data), `"name":"home.example.com"`) {
		t.Errorf("unexpected cache file content: %s", data)
	}
}

func TestUnchangedAddressIsIdempotent(t *testing.T) {
	s := newStack(t, "json")
	before := len(s.console.Calls())

	for range 3 {
		status, body := s.call(t, routerUser, routerPassword, "myip=1.2.3.4&hostname=home.example.com")
		if status != http.StatusOK || body != "home.example.com is already 1.2.3.4" {
			t.Fatalf("unexpected response %d %q", status, body)
		}
	}
	if after := len(s.console.Calls()); after != before {
		t.Errorf("expected no console calls, got %d", after-before)
	}
}

func TestChangedAddress(t *testing.T) {
	for _, backend := range []string{"json", "db"} {
		t.Run(backend, func(t *testing.T) {
			s := newStack(t, backend)

			status, body := s.call(t, routerUser, routerPassword, "myip=5.6.7.8&hostname=home.example.com")
			if status != http.StatusOK || body != "Done" {
				t.Fatalf("unexpected response %d %q", status, body)
			}

			rec, ok := s.console.Record(s.homeID)
			if !ok {
				t.Fatal("record disappeared")
			}
			if rec.Target != "5.6.7.8" || rec.TTL != "300" || rec.Type != "A" || rec.Name != "home" {
				t.Errorf("unexpected record after update: %+v", rec)
			}
			if got := s.console.Finalized(s.zoneID); got != 1 {
				t.Errorf("expected exactly one finalize, got %d", got)
			}
			if got := s.console.Staged(s.zoneID); got != 0 {
				t.Errorf("expected nothing left staged, got %d", got)
			}

			target, ok := s.store.Target("home.example.com")
			if !ok || target != "5.6.7.8" {
				t.Errorf("expected cache to hold 5.6.7.8, got %q", target)
			}

			// The same callback again is answered from the cache.
			status, body = s.call(t, routerUser, routerPassword, "myip=5.6.7.8&hostname=home.example.com")
			if status != http.StatusOK || body != "home.example.com is already 5.6.7.8" {
				t.Errorf("unexpected response %d %q", status, body)
			}
		})
	}
}

func TestApexRecord(t *testing.T) {
	s := newStack(t, "json")

	status, body := s.call(t, routerUser, routerPassword, "myip=9.9.9.9&hostname=example.com")
	if status != http.StatusOK || body != "Done" {
		t.Fatalf("unexpected response %d %q", status, body)
	}
	for _, r := range s.console.Records(s.zoneID) {
		if r.Name == "" && r.Target != "9.9.9.9" {
			t.Errorf("apex not updated: %+v", r)
		}
	}
}

func TestRejectedCallbacks(t *testing.T) {
	s := newStack(t, "json")
	before := len(s.console.Calls())

	tests := []struct {
		name     string
		user     string
		password string
		query    string
		status   int
		body     string
	}{
		{"no auth", "", "", "myip=5.6.7.8&hostname=home.example.com", http.StatusUnauthorized, "No auth token"},
		{"no auth without params", "", "", "", http.StatusBadRequest, "Necessary parameters not set"},
		{"wrong password", routerUser, "nope", "myip=5.6.7.8&hostname=home.example.com", http.StatusForbidden, "Wrong auth token"},
		{"wrong password without params", routerUser, "nope", "", http.StatusForbidden, "Wrong auth token"},
		{"missing hostname", routerUser, routerPassword, "myip=5.6.7.8", http.StatusBadRequest, "Necessary parameters not set"},
		{"bad ip", routerUser, routerPassword, "myip=5.6.7&hostname=home.example.com", http.StatusBadRequest, "Invalid myip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.call(t, tt.user, tt.password, tt.query)
			if status != tt.status || body != tt.body {
				t.Errorf("expected %d %q, got %d %q", tt.status, tt.body, status, body)
			}
		})
	}
	if after := len(s.console.Calls()); after != before {
		t.Errorf("rejected callbacks must not reach the console, got %d calls", after-before)
	}
}

func TestUnknownRecord(t *testing.T) {
	s := newStack(t, "json")

	status, body := s.call(t, routerUser, routerPassword, "myip=5.6.7.8&hostname=nas.example.com")
	if status != http.StatusNotFound || body != "Record not found" {
		t.Errorf("unexpected response %d %q", status, body)
	}
	if got := s.console.CountCalls("POST /dnsRecord"); got != 0 {
		t.Errorf("expected no record mutation, got %d", got)
	}
	if got := s.console.Finalized(s.zoneID); got != 0 {
		t.Errorf("expected no finalize, got %d", got)
	}
}

func TestConsoleUnavailable(t *testing.T) {
	s := newStack(t, "json")
	s.console.SetUnavailable(true)

	status, body := s.call(t, routerUser, routerPassword, "myip=5.6.7.8&hostname=home.example.com")
	if status != http.StatusGatewayTimeout || body != "Provider unreachable" {
		t.Errorf("unexpected response %d %q", status, body)
	}

	target, _ := s.store.Target("home.example.com")
	if target != "1.2.3.4" {
		t.Errorf("cache must keep the old address, got %q", target)
	}
}
