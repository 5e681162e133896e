// Package opnsense is the second provider behind the dns registry. It keeps
// Unbound host overrides in sync and covers only the dns.Provider contract,
// not general DNS management.
package opnsense

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

func init() {
	dns.Register("opnsense", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for OPNsense Unbound host overrides.
// Zones are the distinct domains of the overrides and a zone id is the domain
// itself. Changes are staged in the configuration until FinalizeZone applies
// them with a service reconfigure, which covers every zone at once.
type Provider struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	defaultTTL int
	client     *http.Client
	log        logr.Logger
}

// New creates an OPNsense DNS provider from the given settings map.
// Required settings: base_url, api_key, api_secret.
// Optional settings: default_ttl (default 300), skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'base_url'")
	}
	apiKey := settings["api_key"]
	if apiKey == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'api_key'")
	}
	apiSecret := settings["api_secret"]
	if apiSecret == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'api_secret'")
	}

	defaultTTL := 300
	if v := settings["default_ttl"]; v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("opnsense: invalid default_ttl %q: %w", v, err)
		}
		defaultTTL = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		defaultTTL: defaultTTL,
		client:     &http.Client{Transport: transport},
		log:        log,
	}, nil
}

// call executes a request against the OPNsense API and decodes the JSON
// response into out. Failures are classified with the dns error kinds.
func (p *Provider) call(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("opnsense: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := strings.TrimRight(p.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("opnsense: build request: %w", err)
	}

	req.SetBasicAuth(p.apiKey, p.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("opnsense: %s %s: %w: %w", method, path, dns.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("opnsense: %s %s: %w", method, path, dns.ErrAuthFailed)
	case resp.StatusCode >= 500:
		return fmt.Errorf("opnsense: %s %s returned status %d: %w", method, path, resp.StatusCode, dns.ErrUnreachable)
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("opnsense: %s %s returned status %d: %s: %w", method, path, resp.StatusCode, string(respBody), dns.ErrRejected)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("opnsense: decode %s response: %w", path, err)
	}
	return nil
}

// searchResponse is the shape returned by searchHostOverride.
type searchResponse struct {
	Rows []hostRow `json:"rows"`
}

// hostRow represents a single host override row from the search response.
type hostRow struct {
	UUID     string `json:"uuid"`
	Enabled  string `json:"enabled"`
	Hostname string `json:"hostname"`
	Domain   string `json:"domain"`
	RR       string `json:"rr"`
	Server   string `json:"server"`
}

func (p *Provider) search(ctx context.Context) ([]hostRow, error) {
	var sr searchResponse
	if err := p.call(ctx, http.MethodGet, "unbound/settings/searchHostOverride", nil, &sr); err != nil {
		return nil, err
	}
	return sr.Rows, nil
}

func (p *Provider) record(row hostRow) dns.Record {
	return dns.Record{
		Name:   dns.JoinHostname(row.Hostname, row.Domain),
		ID:     row.UUID,
		Type:   dns.RecordType(strings.ToUpper(row.RR)),
		Target: row.Server,
		TTL:    p.defaultTTL,
	}
}

// Login verifies the API credentials. The API is stateless, so there is no
// session to establish.
func (p *Provider) Login(ctx context.Context) error {
	if _, err := p.search(ctx); err != nil {
		return fmt.Errorf("opnsense: login: %w", err)
	}
	return nil
}

// ListZones returns the distinct domains of all host overrides, in order of
// first appearance.
func (p *Provider) ListZones(ctx context.Context) ([]dns.Zone, error) {
	rows, err := p.search(ctx)
	if err != nil {
		return nil, err
	}
	zones := []dns.Zone{}
	for _, row := range rows {
		if !slices.ContainsFunc(zones, func(z dns.Zone) bool { return z.Domain == row.Domain }) {
			zones = append(zones, dns.Zone{Domain: row.Domain, ID: row.Domain})
		}
	}
	return zones, nil
}

func (p *Provider) ResolveZone(ctx context.Context, domain string) (string, error) {
	zones, err := p.ListZones(ctx)
	if err != nil {
		return "", err
	}
	for _, z := range zones {
		if z.Domain == domain {
			return z.ID, nil
		}
	}
	return "", fmt.Errorf("opnsense: zone %q: %w", domain, dns.ErrNotFound)
}

func (p *Provider) ListRecords(ctx context.Context, zoneID string) ([]dns.Record, error) {
	rows, err := p.search(ctx)
	if err != nil {
		return nil, err
	}
	records := []dns.Record{}
	for _, row := range rows {
		if strings.EqualFold(row.Domain, zoneID) {
			records = append(records, p.record(row))
		}
	}
	return records, nil
}

func (p *Provider) ResolveRecord(ctx context.Context, zoneID, name string) (string, error) {
	records, err := p.ListRecords(ctx, zoneID)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if strings.EqualFold(r.Name, name) {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("opnsense: record %q in zone %s: %w", name, zoneID, dns.ErrNotFound)
}

// supportedType reports whether Unbound host overrides can carry t.
func supportedType(t dns.RecordType) bool {
	return t == dns.TypeA || t == dns.TypeAAAA
}

// buildHostBody creates the JSON body for add/set host override calls.
func buildHostBody(domain string, fields dns.RecordFields) map[string]any {
	return map[string]any{
		"host": map[string]string{
			"enabled":     "1",
			"hostname":    fields.Name,
			"domain":      domain,
			"rr":          string(fields.Type),
			"server":      fields.Target,
			"description": "managed by rackhost-ddns",
			"mxprio":      "",
			"mx":          "",
		},
	}
}

type saveResult struct {
	Result string `json:"result"`
	UUID   string `json:"uuid"`
}

// CreateRecord adds a host override to the zone. The override is served only
// after FinalizeZone.
func (p *Provider) CreateRecord(ctx context.Context, zoneID string, fields dns.RecordFields) error {
	if !supportedType(fields.Type) {
		return fmt.Errorf("opnsense: record type %q not supported by host overrides: %w", fields.Type, dns.ErrRejected)
	}
	p.log.Info("creating record", "zone", zoneID, "name", fields.Name, "type", fields.Type, "target", fields.Target)

	var result saveResult
	if err := p.call(ctx, http.MethodPost, "unbound/settings/addHostOverride", buildHostBody(zoneID, fields), &result); err != nil {
		return err
	}
	if result.Result != "saved" {
		return fmt.Errorf("opnsense: addHostOverride unexpected result %q: %w", result.Result, dns.ErrRejected)
	}

	p.log.Info("record created", "uuid", result.UUID)
	return nil
}

// UpdateRecord changes a host override. Zero fields keep the current values.
func (p *Provider) UpdateRecord(ctx context.Context, recordID string, fields dns.RecordFields) (dns.RecordFields, error) {
	rows, err := p.search(ctx)
	if err != nil {
		return dns.RecordFields{}, err
	}
	i := slices.IndexFunc(rows, func(r hostRow) bool { return r.UUID == recordID })
	if i < 0 {
		return dns.RecordFields{}, fmt.Errorf("opnsense: no existing override %s: %w", recordID, dns.ErrNotFound)
	}
	current := rows[i]

	if fields.Name == "" {
		fields.Name = current.Hostname
	}
	if fields.Type == "" {
		fields.Type = dns.RecordType(strings.ToUpper(current.RR))
	}
	if fields.Target == "" {
		fields.Target = current.Server
	}
	if fields.TTL == 0 {
		fields.TTL = p.defaultTTL
	}
	if !supportedType(fields.Type) {
		return dns.RecordFields{}, fmt.Errorf("opnsense: record type %q not supported by host overrides: %w", fields.Type, dns.ErrRejected)
	}
	p.log.Info("updating record", "uuid", recordID, "name", fields.Name, "type", fields.Type, "target", fields.Target)

	var result saveResult
	if err := p.call(ctx, http.MethodPost, "unbound/settings/setHostOverride/"+recordID, buildHostBody(current.Domain, fields), &result); err != nil {
		return dns.RecordFields{}, err
	}
	if result.Result != "saved" {
		return dns.RecordFields{}, fmt.Errorf("opnsense: setHostOverride unexpected result %q: %w", result.Result, dns.ErrRejected)
	}

	p.log.Info("record updated", "uuid", recordID)
	return fields, nil
}

func (p *Provider) DeleteRecord(ctx context.Context, recordID string) error {
	p.log.Info("deleting record", "uuid", recordID)

	var result saveResult
	if err := p.call(ctx, http.MethodPost, "unbound/settings/delHostOverride/"+recordID, struct{}{}, &result); err != nil {
		return err
	}
	if result.Result != "deleted" {
		return fmt.Errorf("opnsense: delHostOverride unexpected result %q: %w", result.Result, dns.ErrRejected)
	}

	p.log.Info("record deleted", "uuid", recordID)
	return nil
}

// FinalizeZone tells OPNsense to apply the staged configuration.
func (p *Provider) FinalizeZone(ctx context.Context, zoneID string) error {
	var result struct {
		Status string `json:"status"`
	}
	if err := p.call(ctx, http.MethodPost, "unbound/service/reconfigure", struct{}{}, &result); err != nil {
		return fmt.Errorf("opnsense: reconfigure: %w", err)
	}
	p.log.V(1).Info("reconfigure completed", "zone", zoneID, "status", result.Status)
	return nil
}
