package rackhost

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

const (
	fieldName   = "DnsRecordForm[name]"
	fieldType   = "DnsRecordForm[type]"
	fieldTTL    = "DnsRecordForm[ttl]"
	fieldTarget = "DnsRecordForm[target]"
)

// ListRecords returns every record of a zone in listing order. The columns
// of the record grid are name, type, target and TTL; the row's first link
// points at the record's edit page and carries its id.
func (p *Provider) ListRecords(ctx context.Context, zoneID string) ([]dns.Record, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("rackhost: list records: empty zone id")
	}
	doc, err := p.page(ctx, "/dnsZone/"+zoneID)
	if err != nil {
		return nil, fmt.Errorf("rackhost: list records of zone %s: %w", zoneID, err)
	}

	var records []dns.Record
	doc.Find(recordRowSelector).Each(func(_ int, tr *goquery.Selection) {
		href, _ := tr.Find("a[href]").First().Attr("href")
		id := lastSegment(href)
		if id == "" {
			return
		}
		cells := tr.Find("td")
		cell := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }
		ttl, _ := strconv.Atoi(cell(3))
		records = append(records, dns.Record{
			Name:   cell(0),
			ID:     id,
			Type:   dns.RecordType(cell(1)),
			Target: cell(2),
			TTL:    ttl,
		})
	})
	return records, nil
}

// ResolveRecord returns the id of the first record of the zone whose listed
// name equals the fully-qualified name.
func (p *Provider) ResolveRecord(ctx context.Context, zoneID, name string) (string, error) {
	records, err := p.ListRecords(ctx, zoneID)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.Name == name {
			p.log.V(1).Info("resolved record", "name", name, "zone", zoneID, "id", r.ID)
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("rackhost: record %q in zone %s: %w", name, zoneID, dns.ErrNotFound)
}

// CreateRecord stages a new record in the zone. It does not check whether a
// record with the same name already exists.
func (p *Provider) CreateRecord(ctx context.Context, zoneID string, fields dns.RecordFields) error {
	if zoneID == "" {
		return fmt.Errorf("rackhost: create record: empty zone id")
	}
	if !dns.ValidRecordType(fields.Type) {
		return fmt.Errorf("rackhost: create record: invalid type %q", fields.Type)
	}
	if !dns.ValidTTL(fields.TTL) {
		return fmt.Errorf("rackhost: create record: invalid ttl %d", fields.TTL)
	}
	if fields.Target == "" {
		return fmt.Errorf("rackhost: create record: missing target")
	}
	p.log.Info("creating record", "zone", zoneID, "name", fields.Name, "type", fields.Type, "target", fields.Target)

	path := "/dnsRecord/createOther?dnsZoneId=" + url.QueryEscape(zoneID)
	doc, err := p.page(ctx, path)
	if err != nil {
		return fmt.Errorf("rackhost: create record: %w", err)
	}

	form := url.Values{
		fieldName:   {fields.Name},
		fieldType:   {string(fields.Type)},
		fieldTTL:    {strconv.Itoa(fields.TTL)},
		fieldTarget: {fields.Target},
	}
	if _, err := p.post(ctx, path, ExtractCSRF(doc), form); err != nil {
		return fmt.Errorf("rackhost: create record: %w", err)
	}

	p.log.Info("record staged", "zone", zoneID, "name", fields.Name)
	return nil
}

// UpdateRecord stages a change to an existing record. Fields left at their
// zero value keep the value currently shown in the record's edit form. It
// returns the full field set that was submitted.
func (p *Provider) UpdateRecord(ctx context.Context, recordID string, fields dns.RecordFields) (dns.RecordFields, error) {
	if recordID == "" {
		return dns.RecordFields{}, fmt.Errorf("rackhost: update record: empty record id")
	}
	if fields.Type != "" && !dns.ValidRecordType(fields.Type) {
		return dns.RecordFields{}, fmt.Errorf("rackhost: update record: invalid type %q", fields.Type)
	}
	if fields.TTL != 0 && !dns.ValidTTL(fields.TTL) {
		return dns.RecordFields{}, fmt.Errorf("rackhost: update record: invalid ttl %d", fields.TTL)
	}

	path := "/dnsRecord/updateOther/" + recordID
	doc, err := p.page(ctx, path)
	if err != nil {
		return dns.RecordFields{}, fmt.Errorf("rackhost: update record %s: %w", recordID, err)
	}

	merged := mergeFields(doc, fields)
	p.log.Info("updating record", "id", recordID, "name", merged.Name, "type", merged.Type, "ttl", merged.TTL, "target", merged.Target)

	form := url.Values{
		fieldName:   {merged.Name},
		fieldType:   {string(merged.Type)},
		fieldTTL:    {formValue(doc, fieldTTL)},
		fieldTarget: {merged.Target},
	}
	if merged.TTL != 0 {
		form.Set(fieldTTL, strconv.Itoa(merged.TTL))
	}
	if _, err := p.post(ctx, path, ExtractCSRF(doc), form); err != nil {
		return dns.RecordFields{}, fmt.Errorf("rackhost: update record %s: %w", recordID, err)
	}

	p.log.Info("record update staged", "id", recordID)
	return merged, nil
}

// mergeFields fills the zero fields of an update from the edit form.
func mergeFields(doc *goquery.Document, fields dns.RecordFields) dns.RecordFields {
	if fields.Name == "" {
		fields.Name = formValue(doc, fieldName)
	}
	if fields.Type == "" {
		fields.Type = dns.RecordType(formValue(doc, fieldType))
	}
	if fields.TTL == 0 {
		fields.TTL, _ = strconv.Atoi(formValue(doc, fieldTTL))
	}
	if fields.Target == "" {
		fields.Target = formValue(doc, fieldTarget)
	}
	return fields
}

// DeleteRecord stages the removal of a record.
func (p *Provider) DeleteRecord(ctx context.Context, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("rackhost: delete record: empty record id")
	}
	p.log.Info("deleting record", "id", recordID)

	doc, err := p.page(ctx, "/dnsRecord/updateOther/"+recordID)
	if err != nil {
		return fmt.Errorf("rackhost: delete record %s: %w", recordID, err)
	}
	if _, err := p.post(ctx, "/dnsRecord/delete/"+recordID, ExtractCSRF(doc), url.Values{}); err != nil {
		return fmt.Errorf("rackhost: delete record %s: %w", recordID, err)
	}

	p.log.Info("record deletion staged", "id", recordID)
	return nil
}
