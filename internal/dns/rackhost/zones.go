package rackhost

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// ListZones returns every zone of the account in listing order.
func (p *Provider) ListZones(ctx context.Context) ([]dns.Zone, error) {
	doc, err := p.page(ctx, "/dnsZone")
	if err != nil {
		return nil, fmt.Errorf("rackhost: list zones: %w", err)
	}

	var zones []dns.Zone
	doc.Find(zoneLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id := lastSegment(href)
		if id == "" {
			return
		}
		zones = append(zones, dns.Zone{Domain: strings.TrimSpace(a.Text()), ID: id})
	})
	return zones, nil
}

// ResolveZone returns the id of the zone whose listed domain equals domain.
func (p *Provider) ResolveZone(ctx context.Context, domain string) (string, error) {
	zones, err := p.ListZones(ctx)
	if err != nil {
		return "", err
	}
	for _, z := range zones {
		if z.Domain == domain {
			p.log.V(1).Info("resolved zone", "domain", domain, "id", z.ID)
			return z.ID, nil
		}
	}
	return "", fmt.Errorf("rackhost: zone %q: %w", domain, dns.ErrNotFound)
}

// FinalizeZone publishes the changes staged on a zone.
func (p *Provider) FinalizeZone(ctx context.Context, zoneID string) error {
	if zoneID == "" {
		return fmt.Errorf("rackhost: finalize: empty zone id")
	}
	if _, err := p.page(ctx, "/dnsZone/finalize/"+zoneID); err != nil {
		return fmt.Errorf("rackhost: finalize zone %s: %w", zoneID, err)
	}
	p.log.Info("zone finalized", "zone", zoneID)
	return nil
}
