package dns

import (
	"strings"
)

// SplitHostname splits an FQDN into the record name and the zone domain.
// The domain is always the last two labels:
// e.g. "home.example.com" → ("home", "example.com")
// e.g. "a.b.example.com" → ("a.b", "example.com")
// e.g. "example.com" → ("", "example.com")
//
// Multi-label public suffixes are not handled: "foo.co.uk" yields
// ("foo", "co.uk").
func SplitHostname(fqdn string) (name, domain string) {
	fqdn = strings.TrimSuffix(fqdn, ".")
	labels := strings.Split(fqdn, ".")
	if len(labels) <= 2 {
		return "", fqdn
	}
	return strings.Join(labels[:len(labels)-2], "."), strings.Join(labels[len(labels)-2:], ".")
}

// JoinHostname is the inverse of SplitHostname: it returns name.domain, or
// just domain when name is empty.
func JoinHostname(name, domain string) string {
	if name == "" {
		return domain
	}
	return name + "." + domain
}
