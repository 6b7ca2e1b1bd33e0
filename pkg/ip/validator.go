package ip

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/miekg/dns"
	"go4.org/netipx"
	"golang.org/x/net/publicsuffix"
)

// ValidateDomain checks that domain is a syntactically valid name below a
// public suffix
func ValidateDomain(domain string) error {
	if domain == "" {
		return core.ErrNoDomain
	}

	if strings.ContainsAny(domain, " /:") {
		return fmt.Errorf("%w: %q contains invalid characters", core.ErrInvalidDomain, domain)
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("%w: %q cannot start or end with dot", core.ErrInvalidDomain, domain)
	}
	if strings.HasPrefix(domain, "-") || strings.HasSuffix(domain, "-") {
		return fmt.Errorf("%w: %q cannot start or end with hyphen", core.ErrInvalidDomain, domain)
	}
	if _, ok := dns.IsDomainName(domain); !ok || len(domain) > 253 {
		return fmt.Errorf("%w: %q", core.ErrInvalidDomain, domain)
	}

	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return fmt.Errorf("%w: %q is a public suffix", core.ErrInvalidDomain, domain)
	}

	return nil
}

// SanitizeDomain removes scheme, path and trailing dot from domain input
func SanitizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	if i := strings.IndexByte(domain, '/'); i >= 0 {
		domain = domain[:i]
	}
	domain = strings.TrimSuffix(domain, ".")
	return strings.ToLower(domain)
}

// RegistrableDomain returns the public suffix plus one label of domain
func RegistrableDomain(domain string) (string, error) {
	reg, err := publicsuffix.EffectiveTLDPlusOne(SanitizeDomain(domain))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidDomain, err)
	}
	return reg, nil
}

// Special-purpose blocks (RFC 6890 and successors) that are never probed
var reservedPrefixes = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.88.99.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::/128",
	"::1/128",
	"64:ff9b:1::/48",
	"100::/64",
	"2001::/23",
	"2001:db8::/32",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

var reserved = sync.OnceValue(func() *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, p := range reservedPrefixes {
		b.AddPrefix(netip.MustParsePrefix(p))
	}
	set, err := b.IPSet()
	if err != nil {
		panic(err)
	}
	return set
})

// IsPublic reports whether addr is globally routable unicast
func IsPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() || !addr.IsGlobalUnicast() {
		return false
	}
	return !reserved().Contains(addr)
}

// FilterPublic returns the public addresses of addrs in input order, with
// the number of addresses dropped as unparsable or non-public
func FilterPublic(addrs []string) ([]string, int) {
	out := make([]string, 0, len(addrs))
	dropped := 0
	for _, s := range addrs {
		addr, err := ParseAddr(s)
		if err != nil || !IsPublic(addr) {
			dropped++
			continue
		}
		out = append(out, addr.String())
	}
	return out, dropped
}
