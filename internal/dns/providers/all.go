// Package providers imports all DNS provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns/opnsense"
	_ "github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns/rackhost"
)
