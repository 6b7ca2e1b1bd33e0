package rdap

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	whoisparser "github.com/likexian/whois-parser"
)

// lookupWhois derives the network block from a raw WHOIS response
func (c *Client) lookupWhois(ctx context.Context, addr string) (Network, error) {
	type reply struct {
		raw string
		err error
	}

	// The whois client has no context support; bound it by ctx here
	ch := make(chan reply, 1)
	go func() {
		raw, err := c.whois(addr)
		ch <- reply{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return Network{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return Network{}, fmt.Errorf("WHOIS lookup failed: %w", r.err)
		}
		return parseWhoisNetwork(r.raw)
	}
}

// parseWhoisNetwork extracts CIDR and network name from ARIN/RIPE style output
func parseWhoisNetwork(raw string) (Network, error) {
	var cidrs []string
	var name string

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch key {
		case "cidr":
			if len(cidrs) == 0 {
				for _, c := range strings.Split(value, ",") {
					if p, err := netip.ParsePrefix(strings.TrimSpace(c)); err == nil {
						cidrs = append(cidrs, p.String())
					}
				}
			}
		case "inetnum", "inet6num", "netrange":
			if len(cidrs) > 0 {
				continue
			}
			if strings.Contains(value, "/") {
				if p, err := netip.ParsePrefix(value); err == nil {
					cidrs = append(cidrs, p.String())
				}
				continue
			}
			if start, end, ok := strings.Cut(value, "-"); ok {
				if prefixes, err := rangePrefixes(start, end); err == nil {
					cidrs = prefixes
				}
			}
		case "netname":
			if name == "" {
				name = value
			}
		}
	}

	if len(cidrs) == 0 {
		return Network{}, fmt.Errorf("no network range in WHOIS response")
	}

	return Network{CIDR: strings.Join(cidrs, ", "), Name: orNA(name)}, nil
}

// DomainInfo summarises the registration of a domain
type DomainInfo struct {
	Domain         string   `json:"domain"`
	Registrar      string   `json:"registrar"`
	Registrant     string   `json:"registrant,omitempty"`
	CreatedDate    string   `json:"created_date,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
	NameServers    []string `json:"name_servers,omitempty"`
	Status         []string `json:"status,omitempty"`
}

// LookupDomain fetches and parses the WHOIS registration of domain
func (c *Client) LookupDomain(ctx context.Context, domain string) (*DomainInfo, error) {
	type reply struct {
		raw string
		err error
	}

	ch := make(chan reply, 1)
	go func() {
		raw, err := c.whois(domain)
		ch <- reply{raw: raw, err: err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("WHOIS lookup failed: %w", r.err)
		}
		raw = r.raw
	}

	return parseDomainWhois(domain, raw)
}

func parseDomainWhois(domain, raw string) (*DomainInfo, error) {
	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WHOIS response: %w", err)
	}

	info := &DomainInfo{Domain: domain, Registrar: NotAvailable}
	if parsed.Domain != nil {
		info.CreatedDate = parsed.Domain.CreatedDate
		info.ExpirationDate = parsed.Domain.ExpirationDate
		info.NameServers = parsed.Domain.NameServers
		info.Status = parsed.Domain.Status
	}
	if parsed.Registrar != nil && parsed.Registrar.Name != "" {
		info.Registrar = parsed.Registrar.Name
	}
	if parsed.Registrant != nil {
		info.Registrant = parsed.Registrant.Organization
		if info.Registrant == "" {
			info.Registrant = parsed.Registrant.Name
		}
	}
	return info, nil
}
