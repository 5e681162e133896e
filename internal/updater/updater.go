// Package updater turns a (hostname, address) pair into at most one provider
// update cycle, skipping the provider entirely when the cache already holds
// the address.
package updater

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/cache"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/zoneops"
)

// Result describes the outcome of an Update.
type Result struct {
	// Record is the fully qualified record name the hostname resolved to.
	Record string
	// Unchanged is true when the cache already held the address and the
	// provider was not contacted.
	Unchanged bool
}

// Updater pushes address changes to the provider.
type Updater struct {
	// NewProvider returns a fresh, logged-out provider client. Each update
	// cycle gets its own session.
	NewProvider func() (dns.Provider, error)
	Cache       *cache.Store
	Log         logr.Logger
}

// Update points hostname at ip. The hostname is split into a record name and
// a two-label domain; the record must already exist at the provider.
func (u *Updater) Update(ctx context.Context, hostname, ip string) (Result, error) {
	name, domain := dns.SplitHostname(hostname)
	record := dns.JoinHostname(name, domain)
	log := u.Log.WithValues("record", record, "ip", ip)

	ctx, span := otel.Tracer("rackhost-ddns").Start(ctx, "updater.Update")
	defer span.End()
	span.SetAttributes(attribute.String("dns.record", record), attribute.String("dns.target", ip))

	if target, ok := u.Cache.Target(record); ok {
		if target == ip {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			log.V(1).Info("address unchanged, skipping provider")
			return Result{Record: record, Unchanged: true}, nil
		}
		metrics.CacheLookups.WithLabelValues("stale").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	res, err := u.push(ctx, domain, name, ip)
	if err != nil {
		metrics.RecordUpdates.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Record: record}, err
	}
	metrics.RecordUpdates.WithLabelValues("success").Inc()

	entry := cache.Entry{
		Name:   record,
		ID:     res.RecordID,
		Type:   string(res.Fields.Type),
		Target: ip,
		TTL:    res.Fields.TTL,
	}
	if err := u.Cache.Put(entry); err != nil {
		// The provider already serves ip; the next callback repeats the update.
		log.Error(err, "record updated but cache write failed")
		return Result{Record: record}, fmt.Errorf("updating cache: %w", err)
	}

	log.Info("record updated", "recordID", res.RecordID)
	return Result{Record: record}, nil
}

func (u *Updater) push(ctx context.Context, domain, name, ip string) (zoneops.Result, error) {
	p, err := u.NewProvider()
	if err != nil {
		return zoneops.Result{}, fmt.Errorf("creating provider: %w", err)
	}
	if err := p.Login(ctx); err != nil {
		return zoneops.Result{}, err
	}
	return zoneops.Update(ctx, p, domain, name, dns.RecordFields{Target: ip})
}
