package rackhost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns/rackhost/rackhosttest"
)

func validSettings() map[string]string {
	return map[string]string{
		"base_url": "https://www.rackhost.hu",
		"email":    "user@example.com",
		"password": "secret",
	}
}

func TestNew_ValidSettings(t *testing.T) {
	p, err := New(logr.Discard(), validSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.baseURL != "https://www.rackhost.hu" {
		t.Errorf("expected baseURL 'https://www.rackhost.hu', got %q", p.baseURL)
	}
	if p.client.Timeout != defaultTimeout {
		t.Errorf("expected default timeout %v, got %v", defaultTimeout, p.client.Timeout)
	}
	if p.client.Jar == nil {
		t.Error("expected a cookie jar")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	settings := validSettings()
	settings["base_url"] = "https://www.rackhost.hu/"

	p, err := New(logr.Discard(), settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.baseURL != "https://www.rackhost.hu" {
		t.Errorf("expected trailing slash trimmed, got %q", p.baseURL)
	}
}

func TestNew_MissingSettings(t *testing.T) {
	for _, key := range []string{"base_url", "email", "password"} {
		t.Run(key, func(t *testing.T) {
			settings := validSettings()
			delete(settings, key)
			if _, err := New(logr.Discard(), settings); err == nil {
				t.Fatalf("expected error for missing %s, got nil", key)
			}
		})
	}
}

func TestNew_CustomTimeout(t *testing.T) {
	settings := validSettings()
	settings["timeout"] = "5s"

	p, err := New(logr.Discard(), settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", p.client.Timeout)
	}
}

func TestNew_InvalidTimeout(t *testing.T) {
	settings := validSettings()
	settings["timeout"] = "soon"

	if _, err := New(logr.Discard(), settings); err == nil {
		t.Fatal("expected error for invalid timeout, got nil")
	}
}

func TestNew_InvalidRateLimit(t *testing.T) {
	settings := validSettings()
	settings["rate_limit"] = "fast"

	if _, err := New(logr.Discard(), settings); err == nil {
		t.Fatal("expected error for invalid rate_limit, got nil")
	}
}

func TestNew_ProxyPerScheme(t *testing.T) {
	settings := validSettings()
	settings["http_proxy"] = "http://proxy.local:3128"
	settings["https_proxy"] = "http://secure-proxy.local:3128"

	p, err := New(logr.Discard(), settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proxy := p.client.Transport.(*http.Transport).Proxy

	for _, tt := range []struct{ target, want string }{
		{"http://www.rackhost.hu/site/login", "http://proxy.local:3128"},
		{"https://www.rackhost.hu/site/login", "http://secure-proxy.local:3128"},
	} {
		req, _ := http.NewRequest(http.MethodGet, tt.target, nil)
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s): %v", tt.target, err)
		}
		if got == nil || got.String() != tt.want {
			t.Errorf("proxy(%s): got %v, want %s", tt.target, got, tt.want)
		}
	}
}

func TestNew_NoProxy(t *testing.T) {
	p, err := New(logr.Discard(), validSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://www.rackhost.hu", nil)
	got, err := p.client.Transport.(*http.Transport).Proxy(req)
	if err != nil || got != nil {
		t.Errorf("expected direct connection, got %v (err %v)", got, err)
	}
}

func TestNew_RegisteredInRegistry(t *testing.T) {
	p, err := dns.NewProvider("rackhost", logr.Discard(), validSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*Provider); !ok {
		t.Fatalf("expected *rackhost.Provider, got %T", p)
	}
}

// newTestProvider starts a fake console and returns a provider pointed at it.
func newTestProvider(t *testing.T) (*Provider, *rackhosttest.Console) {
	t.Helper()
	console := rackhosttest.NewConsole("user@example.com", "secret")
	srv := httptest.NewServer(console)
	t.Cleanup(srv.Close)

	p, err := New(testr.New(t), map[string]string{
		"base_url": srv.URL,
		"email":    "user@example.com",
		"password": "secret",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	p.backoff = wait.Backoff{Steps: 2, Duration: time.Millisecond}
	return p, console
}

func TestLogin(t *testing.T) {
	p, console := newTestProvider(t)

	if err := p.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if n := console.CountCalls("POST /site/login"); n != 1 {
		t.Errorf("expected 1 login POST, got %d", n)
	}

	u, _ := url.Parse(p.baseURL)
	if len(p.client.Jar.Cookies(u)) == 0 {
		t.Error("expected session cookie in jar after login")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	p, console := newTestProvider(t)
	console.Password = "other"

	err := p.Login(context.Background())
	if !errors.Is(err, dns.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestLogin_Unreachable(t *testing.T) {
	p, console := newTestProvider(t)
	console.SetUnavailable(true)

	err := p.Login(context.Background())
	if !errors.Is(err, dns.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	// One GET plus one retry with the test backoff.
	if n := console.CountCalls("GET /site/login"); n != 2 {
		t.Errorf("expected 2 login page attempts, got %d", n)
	}
}

func TestNotLoggedIn(t *testing.T) {
	p, console := newTestProvider(t)
	console.AddZone("example.com")

	_, err := p.ListZones(context.Background())
	if !errors.Is(err, dns.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed before login, got %v", err)
	}
}

func TestResolveZone(t *testing.T) {
	p, console := newTestProvider(t)
	console.AddZone("other.org")
	id := console.AddZone("example.com")
	ctx := context.Background()

	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := p.ResolveZone(ctx, "example.com")
	if err != nil {
		t.Fatalf("ResolveZone: %v", err)
	}
	if got != id {
		t.Errorf("expected zone id %q, got %q", id, got)
	}

	// Matching is exact and case-sensitive.
	if _, err := p.ResolveZone(ctx, "Example.com"); !errors.Is(err, dns.ErrNotFound) {
		t.Errorf("expected ErrNotFound for different case, got %v", err)
	}
	if _, err := p.ResolveZone(ctx, "missing.net"); !errors.Is(err, dns.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveRecord(t *testing.T) {
	p, console := newTestProvider(t)
	zoneID := console.AddZone("example.com")
	apex := console.AddRecord(zoneID, "", "A", 300, "1.1.1.1")
	home := console.AddRecord(zoneID, "home", "A", 300, "1.2.3.4")
	console.AddRecord(zoneID, "home", "A", 300, "9.9.9.9") // duplicate: first match wins
	ctx := context.Background()

	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	tests := []struct {
		name    string
		wantID  string
		wantErr error
	}{
		{"home.example.com", home, nil},
		{"example.com", apex, nil},
		{"home", "", dns.ErrNotFound},
		{"ghost.example.com", "", dns.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := p.ResolveRecord(ctx, zoneID, tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResolveRecord(%q): got err %v, want %v", tt.name, err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("ResolveRecord(%q): got id %q, want %q", tt.name, id, tt.wantID)
			}
		})
	}
}

func TestResolveRecord_UnknownZone(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := p.ResolveRecord(ctx, "999", "home.example.com"); !errors.Is(err, dns.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown zone, got %v", err)
	}
}

func TestListZonesAndRecords(t *testing.T) {
	p, console := newTestProvider(t)
	z1 := console.AddZone("example.com")
	z2 := console.AddZone("example.org")
	console.AddRecord(z1, "home", "A", 300, "1.2.3.4")
	console.AddRecord(z1, "www", "CNAME", 3600, "example.com")
	ctx := context.Background()

	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	zones, err := p.ListZones(ctx)
	if err != nil {
		t.Fatalf("ListZones: %v", err)
	}
	if len(zones) != 2 || zones[0] != (dns.Zone{Domain: "example.com", ID: z1}) || zones[1] != (dns.Zone{Domain: "example.org", ID: z2}) {
		t.Fatalf("unexpected zones: %+v", zones)
	}

	records, err := p.ListRecords(ctx, z1)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	want := dns.Record{Name: "www.example.com", ID: records[1].ID, Type: dns.TypeCNAME, Target: "example.com", TTL: 3600}
	if records[1] != want {
		t.Errorf("expected %+v, got %+v", want, records[1])
	}

	// The empty-grid placeholder row is not a record.
	empty, err := p.ListRecords(ctx, z2)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no records, got %+v", empty)
	}

	// Listing never finalizes.
	if n := console.CountCalls("GET /dnsZone/finalize/"); n != 0 {
		t.Errorf("expected no finalize calls from listing, got %d", n)
	}
}

func TestCreateRecord(t *testing.T) {
	p, console := newTestProvider(t)
	zoneID := console.AddZone("example.com")
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	err := p.CreateRecord(ctx, zoneID, dns.RecordFields{Name: "vpn", Type: dns.TypeA, TTL: 600, Target: "10.0.0.1"})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	records := console.Records(zoneID)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Name != "vpn" || r.Type != "A" || r.TTL != "600" || r.Target != "10.0.0.1" {
		t.Errorf("unexpected stored record: %+v", r)
	}
	if console.Staged(zoneID) != 1 {
		t.Errorf("expected 1 staged change, got %d", console.Staged(zoneID))
	}
	if console.Finalized(zoneID) != 0 {
		t.Error("expected CreateRecord not to finalize")
	}
}

func TestCreateRecord_InvalidFields(t *testing.T) {
	p, console := newTestProvider(t)
	zoneID := console.AddZone("example.com")
	ctx := context.Background()

	tests := []struct {
		name   string
		fields dns.RecordFields
	}{
		{"bad type", dns.RecordFields{Name: "a", Type: "MX", TTL: 300, Target: "x"}},
		{"bad ttl", dns.RecordFields{Name: "a", Type: dns.TypeA, TTL: 42, Target: "x"}},
		{"no target", dns.RecordFields{Name: "a", Type: dns.TypeA, TTL: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.CreateRecord(ctx, zoneID, tt.fields); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
	if n := len(console.Calls()); n != 0 {
		t.Errorf("expected no console calls for invalid input, got %d", n)
	}
}

func TestCreateRecord_MetaTagToken(t *testing.T) {
	p, console := newTestProvider(t)
	console.MetaOnly = true
	zoneID := console.AddZone("example.com")
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	err := p.CreateRecord(ctx, zoneID, dns.RecordFields{Name: "vpn", Type: dns.TypeA, TTL: 300, Target: "10.0.0.1"})
	if err != nil {
		t.Fatalf("CreateRecord with meta-only token: %v", err)
	}
}

func TestUpdateRecord_MergesOmittedFields(t *testing.T) {
	p, console := newTestProvider(t)
	zoneID := console.AddZone("example.com")
	id := console.AddRecord(zoneID, "home", "AAAA", 3600, "::1")
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := p.UpdateRecord(ctx, id, dns.RecordFields{Target: "2001:db8::1"})
	if err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	want := dns.RecordFields{Name: "home", Type: dns.TypeAAAA, TTL: 3600, Target: "2001:db8::1"}
	if got != want {
		t.Errorf("expected submitted fields %+v, got %+v", want, got)
	}
	stored, _ := console.Record(id)
	if stored.Type != "AAAA" || stored.TTL != "3600" || stored.Name != "home" {
		t.Errorf("expected type/ttl/name preserved, got %+v", stored)
	}
	if stored.Target != "2001:db8::1" {
		t.Errorf("expected target updated, got %q", stored.Target)
	}
}

func TestUpdateRecord_Rename(t *testing.T) {
	p, console := newTestProvider(t)
	zoneID := console.AddZone("example.com")
	id := console.AddRecord(zoneID, "old", "A", 300, "1.2.3.4")
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := p.UpdateRecord(ctx, id, dns.RecordFields{Name: "new", TTL: 600}); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	stored, _ := console.Record(id)
	if stored.Name != "new" || stored.TTL != "600" || stored.Target != "1.2.3.4" {
		t.Errorf("unexpected stored record: %+v", stored)
	}
}

func TestUpdateRecord_NotFound(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := p.UpdateRecord(ctx, "404", dns.RecordFields{Target: "1.1.1.1"}); !errors.Is(err, dns.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRecord_EmptyID(t *testing.T) {
	p, _ := newTestProvider(t)
	if _, err := p.UpdateRecord(context.Background(), "", dns.RecordFields{Target: "1.1.1.1"}); err == nil {
		t.Fatal("expected error for empty record id, got nil")
	}
}

func TestDeleteRecord(t *testing.T) {
	p, console := newTestProvider(t)
	zoneID := console.AddZone("example.com")
	id := console.AddRecord(zoneID, "home", "A", 300, "1.2.3.4")
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := p.DeleteRecord(ctx, id); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, ok := console.Record(id); ok {
		t.Error("expected record to be gone")
	}
	if n := console.CountCalls("POST /dnsRecord/delete/" + id); n != 1 {
		t.Errorf("expected 1 delete POST, got %d", n)
	}
}

func TestFinalizeZone(t *testing.T) {
	p, console := newTestProvider(t)
	zoneID := console.AddZone("example.com")
	ctx := context.Background()
	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := p.FinalizeZone(ctx, zoneID); err != nil {
		t.Fatalf("FinalizeZone: %v", err)
	}
	if console.Finalized(zoneID) != 1 {
		t.Errorf("expected zone finalized once, got %d", console.Finalized(zoneID))
	}
}
