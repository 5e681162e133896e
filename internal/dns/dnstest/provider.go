// Package dnstest provides an in-memory dns.Provider that records every call.
package dnstest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// Provider is a dns.Provider backed by maps. Set an entry of Errors to make
// the named method ("Login", "UpdateRecord", ...) fail.
type Provider struct {
	mu      sync.Mutex
	zones   []dns.Zone
	records map[string][]dns.Record // zone id -> records
	calls   []string
	nextID  int

	Errors map[string]error
}

// New returns an empty provider.
func New() *Provider {
	return &Provider{records: map[string][]dns.Record{}, Errors: map[string]error{}}
}

// AddZone adds a zone and returns its id.
func (p *Provider) AddZone(domain string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := "z" + strconv.Itoa(p.nextID)
	p.zones = append(p.zones, dns.Zone{Domain: domain, ID: id})
	return id
}

// AddRecord adds a record (Name is the FQDN) to a zone and returns its id.
func (p *Provider) AddRecord(zoneID string, r dns.Record) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	r.ID = "r" + strconv.Itoa(p.nextID)
	p.records[zoneID] = append(p.records[zoneID], r)
	return r.ID
}

// Record returns the record with the given id.
func (p *Provider) Record(id string) (dns.Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rs := range p.records {
		for _, r := range rs {
			if r.ID == id {
				return r, true
			}
		}
	}
	return dns.Record{}, false
}

// Calls returns the names of the methods called so far, in order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// Count returns how many times method was called.
func (p *Provider) Count(method string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

func (p *Provider) enter(method string) error {
	p.calls = append(p.calls, method)
	return p.Errors[method]
}

func (p *Provider) Login(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enter("Login")
}

func (p *Provider) ResolveZone(_ context.Context, domain string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ResolveZone"); err != nil {
		return "", err
	}
	for _, z := range p.zones {
		if z.Domain == domain {
			return z.ID, nil
		}
	}
	return "", fmt.Errorf("zone %q: %w", domain, dns.ErrNotFound)
}

func (p *Provider) ResolveRecord(_ context.Context, zoneID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ResolveRecord"); err != nil {
		return "", err
	}
	for _, r := range p.records[zoneID] {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("record %q: %w", name, dns.ErrNotFound)
}

func (p *Provider) ListZones(context.Context) ([]dns.Zone, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListZones"); err != nil {
		return nil, err
	}
	return slices.Clone(p.zones), nil
}

func (p *Provider) ListRecords(_ context.Context, zoneID string) ([]dns.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListRecords"); err != nil {
		return nil, err
	}
	return slices.Clone(p.records[zoneID]), nil
}

func (p *Provider) CreateRecord(_ context.Context, zoneID string, f dns.RecordFields) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateRecord"); err != nil {
		return err
	}
	domain := ""
	for _, z := range p.zones {
		if z.ID == zoneID {
			domain = z.Domain
		}
	}
	p.nextID++
	p.records[zoneID] = append(p.records[zoneID], dns.Record{
		Name: dns.JoinHostname(f.Name, domain), ID: "r" + strconv.Itoa(p.nextID),
		Type: f.Type, TTL: f.TTL, Target: f.Target,
	})
	return nil
}

func (p *Provider) UpdateRecord(_ context.Context, recordID string, f dns.RecordFields) (dns.RecordFields, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("UpdateRecord"); err != nil {
		return dns.RecordFields{}, err
	}
	for zoneID, rs := range p.records {
		for i, r := range rs {
			if r.ID != recordID {
				continue
			}
			if f.Type == "" {
				f.Type = r.Type
			}
			if f.TTL == 0 {
				f.TTL = r.TTL
			}
			if f.Target == "" {
				f.Target = r.Target
			}
			r.Type, r.TTL, r.Target = f.Type, f.TTL, f.Target
			p.records[zoneID][i] = r
			return f, nil
		}
	}
	return dns.RecordFields{}, fmt.Errorf("record %s: %w", recordID, dns.ErrNotFound)
}

func (p *Provider) DeleteRecord(_ context.Context, recordID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteRecord"); err != nil {
		return err
	}
	for zoneID, rs := range p.records {
		for i, r := range rs {
			if r.ID == recordID {
				p.records[zoneID] = slices.Delete(rs, i, i+1)
				return nil
			}
		}
	}
	return fmt.Errorf("record %s: %w", recordID, dns.ErrNotFound)
}

func (p *Provider) FinalizeZone(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enter("FinalizeZone")
}
