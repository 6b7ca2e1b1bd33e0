package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// System resolves through the operating system configuration using Go's
// built-in resolver.
type System struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewSystem creates a system resolver with a per-lookup timeout
func NewSystem(timeout time.Duration) *System {
	return &System{
		resolver: &net.Resolver{
			PreferGo: true,
		},
		timeout: timeout,
	}
}

// LookupHost implements Resolver
func (s *System) LookupHost(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addrs, err := s.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, classify(host, err)
	}
	return addrs, nil
}

// LookupAddr implements Resolver
func (s *System) LookupAddr(ctx context.Context, addr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names, err := s.resolver.LookupAddr(ctx, addr)
	if err != nil {
		return "", classify(addr, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoAnswer, addr)
	}
	return normalizeHost(names[0]), nil
}

// LookupTXT implements Resolver
func (s *System) LookupTXT(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	txt, err := s.resolver.LookupTXT(ctx, name)
	if err != nil {
		return nil, classify(name, err)
	}
	return txt, nil
}

// classify maps resolver errors onto the package failure reasons
func classify(name string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		case dnsErr.IsTimeout:
			return fmt.Errorf("%w: %s", ErrTimeout, name)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, name)
	}
	return fmt.Errorf("%w: %s: %v", ErrServerFailure, name, err)
}
