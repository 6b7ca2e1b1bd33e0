// Package asn provides ASN lookups for IP addresses using the Team Cymru
// IP-to-ASN DNS service.
package asn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jhaxce/subdive/pkg/resolver"
	"github.com/miekg/dns"
)

const (
	originZone  = "origin.asn.cymru.com"
	origin6Zone = "origin6.asn.cymru.com"
	asnZone     = "asn.cymru.com"
)

// ErrNoData is returned when no ASN is published for an address
var ErrNoData = errors.New("no ASN data")

// Info holds the origin data for one address. ASN may list several
// space-separated AS numbers when a prefix is multi-homed.
type Info struct {
	ASN         string
	Prefix      string
	Country     string
	Registry    string
	Description string
}

// Client provides ASN lookup functionality
type Client struct {
	resolver resolver.Resolver

	mu           sync.Mutex
	descriptions map[string]string // AS number -> description
}

// NewClient creates a new ASN lookup client
func NewClient(r resolver.Resolver) *Client {
	return &Client{
		resolver:     r,
		descriptions: make(map[string]string),
	}
}

// Lookup fetches origin ASN, prefix and AS description for addr
func (c *Client) Lookup(ctx context.Context, addr string) (*Info, error) {
	name, err := OriginName(addr)
	if err != nil {
		return nil, err
	}

	txt, err := c.resolver.LookupTXT(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoData, addr, err)
	}
	if len(txt) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, addr)
	}

	// "15169 | 8.8.8.0/24 | US | arin | 2014-03-14"
	fields := splitFields(txt[0])
	if len(fields) < 2 || fields[0] == "" {
		return nil, fmt.Errorf("%w: malformed origin record %q", ErrNoData, txt[0])
	}

	info := &Info{
		ASN:    fields[0],
		Prefix: fields[1],
	}
	if len(fields) > 2 {
		info.Country = fields[2]
	}
	if len(fields) > 3 {
		info.Registry = fields[3]
	}

	primary := strings.Fields(info.ASN)[0]
	info.Description = c.describe(ctx, primary)

	return info, nil
}

// describe returns the cached or freshly fetched AS description, "" when unknown
func (c *Client) describe(ctx context.Context, asn string) string {
	c.mu.Lock()
	desc, ok := c.descriptions[asn]
	c.mu.Unlock()
	if ok {
		return desc
	}

	txt, err := c.resolver.LookupTXT(ctx, "AS"+asn+"."+asnZone)
	if err != nil || len(txt) == 0 {
		// Not cached so a later address can retry
		return ""
	}

	// "15169 | US | arin | 2000-03-30 | GOOGLE - Google LLC, US"
	fields := splitFields(txt[0])
	if len(fields) >= 5 {
		desc = fields[4]
	}

	c.mu.Lock()
	c.descriptions[asn] = desc
	c.mu.Unlock()

	return desc
}

// OriginName returns the Team Cymru origin query name for addr
func OriginName(addr string) (string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}

	switch {
	case strings.HasSuffix(arpa, ".in-addr.arpa."):
		return strings.TrimSuffix(arpa, "in-addr.arpa.") + originZone, nil
	case strings.HasSuffix(arpa, ".ip6.arpa."):
		return strings.TrimSuffix(arpa, "ip6.arpa.") + origin6Zone, nil
	}
	return "", fmt.Errorf("unsupported address %q", addr)
}

func splitFields(record string) []string {
	parts := strings.Split(record, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
