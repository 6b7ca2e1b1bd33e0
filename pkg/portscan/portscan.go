// Package portscan provides the TCP connect probe with opportunistic TLS
// detection.
package portscan

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/runner"
	"golang.org/x/net/proxy"
)

// ErrClosed is the failure reason for refused or timed out connects
var ErrClosed = errors.New("port closed")

// Options configures a Prober
type Options struct {
	ConnectTimeout time.Duration
	TLSTimeout     time.Duration
	ProxyURL       string              // optional socks5:// proxy
	Dialer         proxy.ContextDialer // overrides ProxyURL when set
}

// Prober classifies address/port targets
type Prober struct {
	dialer         proxy.ContextDialer
	connectTimeout time.Duration
	tlsTimeout     time.Duration
}

// New creates a prober
func New(opts Options) (*Prober, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = time.Second
	}
	if opts.TLSTimeout <= 0 {
		opts.TLSTimeout = 2 * time.Second
	}

	dialer := opts.Dialer
	if dialer == nil {
		base := &net.Dialer{Timeout: opts.ConnectTimeout}
		dialer = base

		if opts.ProxyURL != "" {
			u, err := url.Parse(opts.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
			}
			d, err := proxy.FromURL(u, base)
			if err != nil {
				return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("proxy scheme %q does not support context dialing", u.Scheme)
			}
			dialer = cd
		}
	}

	return &Prober{
		dialer:         dialer,
		connectTimeout: opts.ConnectTimeout,
		tlsTimeout:     opts.TLSTimeout,
	}, nil
}

// Probe is the connect-probe executor. Port 80 is reported open and
// unsecured, port 443 open and secured, both without a handshake. Other open
// ports get a TLS handshake with verification disabled to decide whether the
// service is secured.
func (p *Prober) Probe(ctx context.Context, target core.Target) runner.Outcome[core.OpenPort] {
	address := net.JoinHostPort(target.Address, strconv.Itoa(target.Port))

	dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	conn, err := p.dialer.DialContext(dialCtx, "tcp", address)
	cancel()
	if err != nil {
		return runner.Failure[core.OpenPort](fmt.Errorf("%w: %s: %v", ErrClosed, address, err))
	}
	defer conn.Close()

	result := core.OpenPort{Address: target.Address, Port: target.Port}
	switch target.Port {
	case 80:
		result.Secured = false
	case 443:
		result.Secured = true
	default:
		result.Secured = p.handshake(ctx, conn)
	}
	return runner.Success(result)
}

// handshake reports whether the peer completes, or at least speaks, TLS
func (p *Prober) handshake(ctx context.Context, conn net.Conn) bool {
	ctx, cancel := context.WithTimeout(ctx, p.tlsTimeout)
	defer cancel()

	conn.SetDeadline(time.Now().Add(p.tlsTimeout))
	tlsConn := tls.Client(conn, &tls.Config{
		InsecureSkipVerify: true, // only handshake capability matters
	})

	err := tlsConn.HandshakeContext(ctx)
	if err == nil {
		return true
	}
	return isVersionMismatch(err)
}

// isVersionMismatch matches alerts from TLS servers that only refuse the
// offered protocol version.
func isVersionMismatch(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "protocol version") ||
		strings.Contains(msg, "unsupported protocol") ||
		strings.Contains(msg, "unsupported versions")
}

// Targets builds the deduplicated cross product of addresses and ports,
// ordered by address then port.
func Targets(addrs []string, ports []int) []core.Target {
	uniqAddrs := uniqueStrings(addrs)
	uniqPorts := uniqueInts(ports)

	targets := make([]core.Target, 0, len(uniqAddrs)*len(uniqPorts))
	for _, addr := range uniqAddrs {
		for _, port := range uniqPorts {
			targets = append(targets, core.Target{Address: addr, Port: port})
		}
	}
	return targets
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func uniqueInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, n := range in {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
