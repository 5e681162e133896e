// Package zoneops runs record workflows against a logged-in dns.Provider.
// Every workflow that mutates a zone finalizes that zone exactly once, after
// the mutation was accepted; read-only workflows never finalize.
package zoneops

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// Result identifies the zone and record a workflow acted on, and the record
// fields that were submitted.
type Result struct {
	ZoneID   string
	RecordID string
	Fields   dns.RecordFields
}

func start(ctx context.Context, op, domain, name string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("rackhost-ddns").Start(ctx, "zoneops."+op)
	span.SetAttributes(attribute.String("dns.zone", domain), attribute.String("dns.record", name))
	return ctx, span
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// ListZones returns every zone of the account.
func ListZones(ctx context.Context, p dns.Provider) ([]dns.Zone, error) {
	ctx, span := start(ctx, "ListZones", "", "")
	defer span.End()

	zones, err := p.ListZones(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	return zones, nil
}

// ListRecords returns every record of the zone named domain.
func ListRecords(ctx context.Context, p dns.Provider, domain string) ([]dns.Record, error) {
	ctx, span := start(ctx, "ListRecords", domain, "")
	defer span.End()

	zoneID, err := p.ResolveZone(ctx, domain)
	if err != nil {
		return nil, fail(span, err)
	}
	records, err := p.ListRecords(ctx, zoneID)
	if err != nil {
		return nil, fail(span, err)
	}
	return records, nil
}

// Create adds a record to the zone named domain and publishes it.
func Create(ctx context.Context, p dns.Provider, domain string, fields dns.RecordFields) (Result, error) {
	ctx, span := start(ctx, "Create", domain, fields.Name)
	defer span.End()

	zoneID, err := p.ResolveZone(ctx, domain)
	if err != nil {
		return Result{}, fail(span, err)
	}
	if err := p.CreateRecord(ctx, zoneID, fields); err != nil {
		return Result{}, fail(span, err)
	}
	if err := finalize(ctx, p, zoneID); err != nil {
		return Result{}, fail(span, err)
	}
	return Result{ZoneID: zoneID, Fields: fields}, nil
}

// Update changes the record name (relative to domain) and publishes the
// change. Zero fields keep the provider's current values.
func Update(ctx context.Context, p dns.Provider, domain, name string, fields dns.RecordFields) (Result, error) {
	ctx, span := start(ctx, "Update", domain, name)
	defer span.End()

	zoneID, recordID, err := resolve(ctx, p, domain, name)
	if err != nil {
		return Result{}, fail(span, err)
	}
	merged, err := p.UpdateRecord(ctx, recordID, fields)
	if err != nil {
		return Result{}, fail(span, err)
	}
	if err := finalize(ctx, p, zoneID); err != nil {
		return Result{}, fail(span, err)
	}
	return Result{ZoneID: zoneID, RecordID: recordID, Fields: merged}, nil
}

// Delete removes the record name (relative to domain) and publishes the
// removal.
func Delete(ctx context.Context, p dns.Provider, domain, name string) (Result, error) {
	ctx, span := start(ctx, "Delete", domain, name)
	defer span.End()

	zoneID, recordID, err := resolve(ctx, p, domain, name)
	if err != nil {
		return Result{}, fail(span, err)
	}
	if err := p.DeleteRecord(ctx, recordID); err != nil {
		return Result{}, fail(span, err)
	}
	if err := finalize(ctx, p, zoneID); err != nil {
		return Result{}, fail(span, err)
	}
	return Result{ZoneID: zoneID, RecordID: recordID}, nil
}

func resolve(ctx context.Context, p dns.Provider, domain, name string) (zoneID, recordID string, err error) {
	zoneID, err = p.ResolveZone(ctx, domain)
	if err != nil {
		return "", "", err
	}
	recordID, err = p.ResolveRecord(ctx, zoneID, dns.JoinHostname(name, domain))
	if err != nil {
		return "", "", err
	}
	return zoneID, recordID, nil
}

func finalize(ctx context.Context, p dns.Provider, zoneID string) error {
	if err := p.FinalizeZone(ctx, zoneID); err != nil {
		return fmt.Errorf("change staged but not published: %w", err)
	}
	return nil
}
