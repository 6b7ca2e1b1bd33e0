package wildcard

import (
	"strings"

	"github.com/jhaxce/subdive/pkg/core"
)

// Matcher flags resolutions that fall inside a known wildcard zone
type Matcher struct {
	zones map[string][]string // address -> zones
}

// NewMatcher indexes records by address
func NewMatcher(records []core.WildcardRecord) *Matcher {
	m := &Matcher{zones: make(map[string][]string)}
	for _, rec := range records {
		zone := normalize(rec.Zone())
		m.zones[rec.Address] = append(m.zones[rec.Address], zone)
	}
	return m
}

// Match reports whether hostname lies below a wildcard zone answering with address
func (m *Matcher) Match(hostname, address string) bool {
	if m == nil {
		return false
	}
	hostname = normalize(hostname)
	for _, zone := range m.zones[address] {
		if strings.HasSuffix(hostname, "."+zone) {
			return true
		}
	}
	return false
}

// Len returns the number of indexed zones
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, zones := range m.zones {
		n += len(zones)
	}
	return n
}
