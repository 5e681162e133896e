package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// bootstrapConcurrency bounds the zone pages fetched at once.
const bootstrapConcurrency = 4

// Lister is the read-only part of dns.Provider that Bootstrap needs.
type Lister interface {
	ListZones(ctx context.Context) ([]dns.Zone, error)
	ListRecords(ctx context.Context, zoneID string) ([]dns.Record, error)
}

// Bootstrap lists every record of every zone. Entries keep zone listing
// order, then record listing order. Any failure discards the whole result,
// since a partial snapshot would hide records from change detection.
func Bootstrap(ctx context.Context, l Lister) ([]Entry, error) {
	zones, err := l.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}

	perZone := make([][]dns.Record, len(zones))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bootstrapConcurrency)
	for i, z := range zones {
		g.Go(func() error {
			records, err := l.ListRecords(gctx, z.ID)
			if err != nil {
				return fmt.Errorf("listing records of %s: %w", z.Domain, err)
			}
			perZone[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, records := range perZone {
		for _, r := range records {
			entries = append(entries, FromRecord(r))
		}
	}
	return entries, nil
}
