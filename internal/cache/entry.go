// Package cache keeps the last known state of every provider record so that
// repeated callbacks with an unchanged address never reach the provider.
package cache

import (
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// Entry is one cached record. It mirrors the provider as observed by this
// service, which can drift if records are changed out of band.
type Entry struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Type   string `json:"type"`
	Target string `json:"target"`
	TTL    int    `json:"ttl"`
}

// FromRecord converts a listed provider record into a cache entry.
func FromRecord(r dns.Record) Entry {
	return Entry{Name: r.Name, ID: r.ID, Type: string(r.Type), Target: r.Target, TTL: r.TTL}
}

// Lookup scans entries for an exact name match and returns its target.
func Lookup(entries []Entry, name string) (string, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e.Target, true
		}
	}
	return "", false
}
