// Package ip provides address target parsing and filtering utilities
package ip

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/jhaxce/subdive/pkg/core"
	"go4.org/netipx"
)

// MaxExpand caps how many addresses Expand will materialise
const MaxExpand = 1 << 24

// prefixes with this many host bits or more exceed MaxExpand on their own
const maxExpandBits = 25

// ParseAddr parses an IPv4 or IPv6 address string
func ParseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", core.ErrInvalidIP, s)
	}
	return addr.Unmap(), nil
}

// ParsePrefix parses a CIDR notation string, masking host bits
func ParsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q", core.ErrInvalidCIDR, s)
	}
	return p.Masked(), nil
}

// ParseRange parses an inclusive start/end address pair
func ParseRange(start, end string) (netipx.IPRange, error) {
	from, err := ParseAddr(start)
	if err != nil {
		return netipx.IPRange{}, fmt.Errorf("invalid start IP: %w", err)
	}
	to, err := ParseAddr(end)
	if err != nil {
		return netipx.IPRange{}, fmt.Errorf("invalid end IP: %w", err)
	}
	if from.Is4() != to.Is4() {
		return netipx.IPRange{}, fmt.Errorf("range mixes address families: %s - %s", from, to)
	}

	r := netipx.IPRangeFrom(from, to)
	if !r.IsValid() {
		return netipx.IPRange{}, fmt.Errorf("start IP (%s) is greater than end IP (%s)", from, to)
	}
	return r, nil
}

// ParseTarget parses a single address, a CIDR or a start-end range
func ParseTarget(s string) (netipx.IPRange, error) {
	s = strings.TrimSpace(s)

	if strings.Contains(s, "/") {
		p, err := ParsePrefix(s)
		if err != nil {
			return netipx.IPRange{}, err
		}
		return netipx.RangeOfPrefix(p), nil
	}

	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) != 2 {
			return netipx.IPRange{}, fmt.Errorf("invalid IP range format %q (expected start-end)", s)
		}
		return ParseRange(parts[0], parts[1])
	}

	addr, err := ParseAddr(s)
	if err != nil {
		return netipx.IPRange{}, err
	}
	return netipx.IPRangeFrom(addr, addr), nil
}

// Count returns the number of addresses in r, saturating at MaxExpand+1.
// It works on prefix sizes, so huge IPv6 ranges cost nothing to measure.
func Count(r netipx.IPRange) int {
	if !r.IsValid() {
		return 0
	}
	n := 0
	for _, p := range r.Prefixes() {
		host := p.Addr().BitLen() - p.Bits()
		if host >= maxExpandBits {
			return MaxExpand + 1
		}
		n += 1 << host
		if n > MaxExpand {
			return MaxExpand + 1
		}
	}
	return n
}

// Expand merges ranges and returns every address they cover, deduplicated
// and in ascending order. Sets larger than MaxExpand are rejected before any
// address is materialised.
func Expand(ranges []netipx.IPRange) ([]string, error) {
	var b netipx.IPSetBuilder
	for _, r := range ranges {
		b.AddRange(r)
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("failed to build address set: %w", err)
	}

	total := 0
	for _, r := range set.Ranges() {
		total += Count(r)
		if total > MaxExpand {
			return nil, fmt.Errorf("target set exceeds %d addresses", MaxExpand)
		}
	}

	out := make([]string, 0, total)
	for _, r := range set.Ranges() {
		for addr := r.From(); addr.IsValid() && addr.Compare(r.To()) <= 0; addr = addr.Next() {
			out = append(out, addr.String())
		}
	}
	return out, nil
}
