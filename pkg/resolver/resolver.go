// Package resolver provides the DNS probe executors: forward, reverse and TXT
// lookups against either the system resolver or explicit nameservers.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhaxce/subdive/pkg/runner"
	"github.com/miekg/dns"
)

// Failure reasons. Callers currently treat them all as "no result", but they
// stay distinguishable with errors.Is.
var (
	ErrNotFound      = errors.New("name does not exist")
	ErrNoAnswer      = errors.New("no answer")
	ErrServerFailure = errors.New("server failure")
	ErrTimeout       = errors.New("lookup timed out")
	ErrMalformedName = errors.New("malformed name")
)

// DefaultTimeout bounds a single lookup
const DefaultTimeout = 1 * time.Second

// Resolver performs single DNS lookups
type Resolver interface {
	// LookupHost returns every IPv4 and IPv6 address of host
	LookupHost(ctx context.Context, host string) ([]string, error)
	// LookupAddr returns the primary PTR name of addr, lower-cased and without trailing dot
	LookupAddr(ctx context.Context, addr string) (string, error)
	// LookupTXT returns the TXT strings published at name
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// New returns a Direct resolver when nameservers are given, the system resolver otherwise
func New(nameservers []string, timeout time.Duration) Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if len(nameservers) > 0 {
		return NewDirect(nameservers, timeout)
	}
	return NewSystem(timeout)
}

// ValidateName rejects names that cannot be sent as a DNS question
func ValidateName(name string) error {
	trimmed := strings.TrimSuffix(name, ".")
	if trimmed == "" {
		return fmt.Errorf("%w: empty name", ErrMalformedName)
	}
	if _, ok := dns.IsDomainName(trimmed); !ok {
		return fmt.Errorf("%w: %q", ErrMalformedName, name)
	}
	for _, label := range strings.Split(trimmed, ".") {
		if label == "" {
			return fmt.Errorf("%w: empty label in %q", ErrMalformedName, name)
		}
	}
	return nil
}

// Resolve is the forward-resolution executor
func Resolve(ctx context.Context, r Resolver, name string) runner.Outcome[[]string] {
	if err := ValidateName(name); err != nil {
		return runner.Failure[[]string](err)
	}

	addrs, err := r.LookupHost(ctx, name)
	if err != nil {
		return runner.Failure[[]string](err)
	}
	if len(addrs) == 0 {
		return runner.Failure[[]string](fmt.Errorf("%w: %s", ErrNoAnswer, name))
	}
	return runner.Success(addrs)
}

// Reverse is the reverse-resolution executor
func Reverse(ctx context.Context, r Resolver, addr string) runner.Outcome[string] {
	host, err := r.LookupAddr(ctx, addr)
	if err != nil {
		return runner.Failure[string](err)
	}
	if host == "" {
		return runner.Failure[string](fmt.Errorf("%w: %s", ErrNoAnswer, addr))
	}
	return runner.Success(host)
}

func normalizeHost(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
