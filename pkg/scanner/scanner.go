// Package scanner exposes the mass probing operations over a shared
// configuration: wildcard detection, forward and reverse resolution, connect
// scanning and ownership lookups.
package scanner

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhaxce/subdive/pkg/asn"
	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/ip"
	"github.com/jhaxce/subdive/pkg/portscan"
	"github.com/jhaxce/subdive/pkg/rdap"
	"github.com/jhaxce/subdive/pkg/resolver"
	"github.com/jhaxce/subdive/pkg/runner"
	"github.com/jhaxce/subdive/pkg/store"
	"github.com/jhaxce/subdive/pkg/wildcard"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// Scanner runs mass operations with the configured resolver, prober and
// ownership client
type Scanner struct {
	config   *core.Config
	resolver resolver.Resolver
	prober   *portscan.Prober
	rdap     *rdap.Client
	store    store.Store
	limiter  *rate.Limiter
	logger   logrus.FieldLogger
	progress runner.Progress

	dialer proxy.ContextDialer
}

// Option customises a Scanner
type Option func(*Scanner)

// WithStore sets the wildcard store used by ResolveWildcards and Wildcards
func WithStore(st store.Store) Option {
	return func(s *Scanner) { s.store = st }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithProgress sets the progress sink shared by every run
func WithProgress(p runner.Progress) Option {
	return func(s *Scanner) { s.progress = p }
}

// WithDialer replaces the connect-probe dialer
func WithDialer(d proxy.ContextDialer) Option {
	return func(s *Scanner) { s.dialer = d }
}

// New creates a new scanner with the given configuration
func New(config *core.Config, opts ...Option) (*Scanner, error) {
	if config == nil {
		return nil, core.ErrInvalidConfig
	}

	s := &Scanner{config: config}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = runner.DiscardLogger()
	}

	s.resolver = resolver.New(config.Nameservers, config.DNSTimeout)

	prober, err := portscan.New(portscan.Options{
		ConnectTimeout: config.ConnectTimeout,
		TLSTimeout:     config.TLSTimeout,
		ProxyURL:       config.ProxyURL,
		Dialer:         s.dialer,
	})
	if err != nil {
		return nil, err
	}
	s.prober = prober

	s.rdap = rdap.NewClient(config.RDAPURL, config.RDAPTimeout, asn.NewClient(s.resolver))

	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return s, nil
}

// SetProgress replaces the progress sink for subsequent runs
func (s *Scanner) SetProgress(p runner.Progress) {
	s.progress = p
}

// RDAP returns the ownership client, also used for domain registration lookups
func (s *Scanner) RDAP() *rdap.Client {
	return s.rdap
}

func (s *Scanner) options(name string) runner.Options {
	return runner.Options{
		Name:      name,
		Workers:   s.config.Workers,
		ChunkSize: s.config.ChunkSize,
		Limiter:   s.limiter,
		Progress:  s.progress,
		Logger:    s.logger,
	}
}

// ResolveWildcards detects wildcard zones among the levels of names and
// returns the records stored for this detection run
func (s *Scanner) ResolveWildcards(ctx context.Context, names []string) (int, []core.WildcardRecord, error) {
	if s.store == nil {
		return 0, nil, fmt.Errorf("%w: no wildcard store configured", core.ErrInvalidConfig)
	}

	d := &wildcard.Detector{
		Resolver: s.resolver,
		Store:    s.store,
		Options:  s.options("wildcard"),
	}
	return d.Detect(ctx, s.config.Domain, names)
}

// Wildcards returns a matcher over every wildcard zone stored for the domain
func (s *Scanner) Wildcards(ctx context.Context) (*wildcard.Matcher, error) {
	if s.store == nil {
		return wildcard.NewMatcher(nil), nil
	}
	records, err := s.store.QueryDomain(ctx, s.config.Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load wildcards: %w", err)
	}
	return wildcard.NewMatcher(records), nil
}

// MassResolve resolves <label>.<domain> for every candidate and returns one
// resolution per resolved address. Names inside wildcard zones are kept.
func (s *Scanner) MassResolve(ctx context.Context, candidates []core.Candidate) ([]core.Resolution, runner.Stats, error) {
	if s.config.Domain == "" {
		return nil, runner.Stats{}, core.ErrNoDomain
	}
	domain := s.config.Domain

	exec := func(ctx context.Context, c core.Candidate) runner.Outcome[[]core.Resolution] {
		host := wildcard.Hostname(c.Label, domain)
		out := resolver.Resolve(ctx, s.resolver, host)
		if !out.OK() {
			return runner.Failure[[]core.Resolution](out.Err)
		}

		res := make([]core.Resolution, 0, len(out.Value))
		for _, addr := range out.Value {
			res = append(res, core.Resolution{Hostname: host, Address: addr, Context: c.Context})
		}
		return runner.Success(res)
	}

	s.logger.WithField("count", len(candidates)).Info("Attempting to resolve hostnames")

	batches, stats, err := runner.Run(ctx, candidates, exec, s.options("resolve"))
	if err != nil {
		return nil, stats, err
	}

	seen := make(map[core.Resolution]struct{})
	var results []core.Resolution
	for _, batch := range batches {
		for _, r := range batch {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Hostname != b.Hostname {
			return a.Hostname < b.Hostname
		}
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.Context < b.Context
	})

	s.logger.WithFields(logrus.Fields{
		"resolved": stats.Succeeded,
		"total":    stats.Total,
	}).Info("Hostnames that were resolved")
	return results, stats, nil
}

// MassReverseResolve looks up the PTR hostname of every address. Failed and
// duplicate lookups are dropped.
func (s *Scanner) MassReverseResolve(ctx context.Context, addrs []string) ([]core.ReverseRecord, runner.Stats, error) {
	targets := s.prepare(addrs)
	s.logger.WithField("count", len(targets)).Info("Performing reverse DNS lookups")

	exec := func(ctx context.Context, addr string) runner.Outcome[core.ReverseRecord] {
		out := resolver.Reverse(ctx, s.resolver, addr)
		if !out.OK() {
			return runner.Failure[core.ReverseRecord](out.Err)
		}
		return runner.Success(core.ReverseRecord{Hostname: out.Value, Address: addr})
	}

	records, stats, err := runner.Run(ctx, targets, exec, s.options("reverse"))
	if err != nil {
		return nil, stats, err
	}

	records = uniqueSorted(records, func(a, b core.ReverseRecord) bool {
		if a.Hostname != b.Hostname {
			return a.Hostname < b.Hostname
		}
		return a.Address < b.Address
	})

	s.logger.WithFields(logrus.Fields{
		"resolved": len(records),
		"total":    stats.Total,
	}).Info("Addresses that were reverse resolved")
	return records, stats, nil
}

// MassPortScan probes every address/port pair. An empty ports list uses the
// configured ports.
func (s *Scanner) MassPortScan(ctx context.Context, addrs []string, ports []int) ([]core.OpenPort, runner.Stats, error) {
	if len(ports) == 0 {
		ports = s.config.Ports
	}
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return nil, runner.Stats{}, fmt.Errorf("%w: %d", core.ErrInvalidPort, p)
		}
	}

	targets := portscan.Targets(s.prepare(addrs), ports)
	s.logger.WithField("count", len(targets)).Info("Performing connect scans")

	open, stats, err := runner.Run(ctx, targets, s.prober.Probe, s.options("ports"))
	if err != nil {
		return nil, stats, err
	}

	open = uniqueSorted(open, func(a, b core.OpenPort) bool {
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.Port < b.Port
	})

	s.logger.WithFields(logrus.Fields{
		"open":  len(open),
		"total": stats.Total,
	}).Info("Ports that were found open")
	return open, stats, nil
}

// MassRDAP looks up the ownership of every address and returns the
// aggregated ASN and network listings
func (s *Scanner) MassRDAP(ctx context.Context, addrs []string) ([]core.ASNRecord, []core.NetworkRecord, runner.Stats, error) {
	targets := s.prepare(addrs)
	s.logger.WithField("count", len(targets)).Info("Performing RDAP lookups")

	records, stats, err := runner.Run(ctx, targets, s.rdap.Lookup, s.options("rdap"))
	if err != nil {
		return nil, nil, stats, err
	}

	asns, networks := rdap.Aggregate(records)

	s.logger.WithFields(logrus.Fields{
		"asns":     len(asns),
		"networks": len(networks),
		"total":    stats.Total,
	}).Info("Ownership records that were aggregated")
	return asns, networks, stats, nil
}

// prepare normalises and deduplicates addrs, dropping non-public addresses
// when configured
func (s *Scanner) prepare(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	invalid := 0

	for _, a := range addrs {
		addr, err := ip.ParseAddr(a)
		if err != nil {
			invalid++
			continue
		}
		if s.config.PublicOnly && !ip.IsPublic(addr) {
			invalid++
			continue
		}
		key := addr.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}

	if invalid > 0 {
		s.logger.WithField("dropped", invalid).Debug("Skipped invalid or non-public addresses")
	}
	return out
}

func uniqueSorted[T comparable](in []T, less func(a, b T) bool) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
