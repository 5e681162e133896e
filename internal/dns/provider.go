package dns

import (
	"context"
	"slices"
)

// RecordType is a DNS record type accepted by the provider console.
type RecordType string

const (
	TypeA     RecordType = "A"
	TypeAAAA  RecordType = "AAAA"
	TypeCNAME RecordType = "CNAME"
	TypeTXT   RecordType = "TXT"
)

// RecordTypes lists every record type the console accepts.
var RecordTypes = []RecordType{TypeA, TypeAAAA, TypeCNAME, TypeTXT}

// TTLChoices are the only TTL values the console accepts, in seconds.
var TTLChoices = []int{300, 600, 900, 1800, 3600, 7200, 14400, 21600, 43200, 86400, 172800, 432000, 604800}

// ValidRecordType reports whether t is one of RecordTypes.
func ValidRecordType(t RecordType) bool {
	return slices.Contains(RecordTypes, t)
}

// ValidTTL reports whether ttl is one of TTLChoices.
func ValidTTL(ttl int) bool {
	return slices.Contains(TTLChoices, ttl)
}

// Zone is a DNS zone as listed by the provider.
type Zone struct {
	Domain string `json:"domain" yaml:"domain"`
	ID     string `json:"id" yaml:"id"`
}

// Record represents a DNS record within a zone.
type Record struct {
	Name   string     `json:"name" yaml:"name"` // FQDN as listed, e.g. "home.example.com"
	ID     string     `json:"id" yaml:"id"`
	Type   RecordType `json:"type" yaml:"type"`
	Target string     `json:"target" yaml:"target"`
	TTL    int        `json:"ttl" yaml:"ttl"`
}

// RecordFields are the fields of the provider's record form. Name is relative
// to the zone ("home", or "" for the zone apex). For updates, zero values mean
// "keep the value currently stored by the provider".
type RecordFields struct {
	Name   string
	Type   RecordType
	TTL    int
	Target string
}

// Provider is the capability interface of a DNS provider client.
//
// Login must succeed before any other call. Mutations (CreateRecord,
// UpdateRecord, DeleteRecord) are staged until FinalizeZone is called on the
// affected zone.
type Provider interface {
	Login(ctx context.Context) error
	ResolveZone(ctx context.Context, domain string) (string, error)
	ResolveRecord(ctx context.Context, zoneID, name string) (string, error)
	ListZones(ctx context.Context) ([]Zone, error)
	ListRecords(ctx context.Context, zoneID string) ([]Record, error)
	CreateRecord(ctx context.Context, zoneID string, fields RecordFields) error
	UpdateRecord(ctx context.Context, recordID string, fields RecordFields) (RecordFields, error)
	DeleteRecord(ctx context.Context, recordID string) error
	FinalizeZone(ctx context.Context, zoneID string) error
}
