package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// Direct sends queries straight to a fixed list of nameservers, rotating
// between them per query.
type Direct struct {
	udp     *dns.Client
	tcp     *dns.Client
	servers []string
	next    uint64
	timeout time.Duration
}

// NewDirect creates a resolver for host:port nameservers
func NewDirect(servers []string, timeout time.Duration) *Direct {
	return &Direct{
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
		servers: servers,
		timeout: timeout,
	}
}

// LookupHost implements Resolver. Like getaddrinfo it returns both A and AAAA
// answers; CNAME chains are followed by the recursive server. Both questions
// are sent at once and share a single timeout.
func (d *Direct) LookupHost(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	qtypes := []uint16{dns.TypeA, dns.TypeAAAA}
	resps := make([]*dns.Msg, len(qtypes))
	errs := make([]error, len(qtypes))

	var wg sync.WaitGroup
	for i, qtype := range qtypes {
		wg.Add(1)
		go func(i int, qtype uint16) {
			defer wg.Done()
			resps[i], errs[i] = d.query(ctx, host, qtype)
		}(i, qtype)
	}
	wg.Wait()

	var addrs []string
	var firstErr error
	for i := range qtypes {
		if err := errs[i]; err != nil {
			// NXDOMAIN applies to every record type
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, rr := range resps[i].Answer {
			switch v := rr.(type) {
			case *dns.A:
				addrs = append(addrs, v.A.String())
			case *dns.AAAA:
				addrs = append(addrs, v.AAAA.String())
			}
		}
	}

	if len(addrs) > 0 {
		return addrs, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAnswer, host)
}

// LookupAddr implements Resolver
func (d *Direct) LookupAddr(ctx context.Context, addr string) (string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedName, err)
	}

	resp, err := d.query(ctx, arpa, dns.TypePTR)
	if err != nil {
		return "", err
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return normalizeHost(ptr.Ptr), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoAnswer, addr)
}

// LookupTXT implements Resolver
func (d *Direct) LookupTXT(ctx context.Context, name string) ([]string, error) {
	resp, err := d.query(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAnswer, name)
	}
	return out, nil
}

// query sends one question and maps the response code to a failure reason
func (d *Direct) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	if len(d.servers) == 0 {
		return nil, fmt.Errorf("%w: no nameservers configured", ErrServerFailure)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	server := d.servers[atomic.AddUint64(&d.next, 1)%uint64(len(d.servers))]

	resp, _, err := d.udp.ExchangeContext(ctx, msg, server)
	if err == nil && resp.Truncated {
		resp, _, err = d.tcp.ExchangeContext(ctx, msg, server)
	}
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrServerFailure, name, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
		return resp, nil
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return nil, fmt.Errorf("%w: %s: %s", ErrServerFailure, name, dns.RcodeToString[resp.Rcode])
	}
}
