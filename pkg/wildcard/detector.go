package wildcard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/resolver"
	"github.com/jhaxce/subdive/pkg/runner"
	"github.com/jhaxce/subdive/pkg/store"
	"github.com/sirupsen/logrus"
)

// Detector runs wildcard detection for a domain and persists the minimal
// wildcard zones it finds
type Detector struct {
	Resolver resolver.Resolver
	Store    store.Store
	Options  runner.Options

	// Now and Token default to time.Now and NewToken
	Now   func() time.Time
	Token func(ts int64) string
}

// Detect probes one synthetic name per level derived from names, persists
// the minimal wildcard set under a shared run timestamp and returns the
// records stored for that run. Duplicate records are skipped.
func (d *Detector) Detect(ctx context.Context, domain string, names []string) (int, []core.WildcardRecord, error) {
	domain = normalize(domain)
	if domain == "" {
		return 0, nil, core.ErrNoDomain
	}
	if d.Resolver == nil || d.Store == nil {
		return 0, nil, fmt.Errorf("%w: detector needs a resolver and a store", core.ErrInvalidConfig)
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	newToken := NewToken
	if d.Token != nil {
		newToken = d.Token
	}

	ts := now().Unix()
	token := newToken(ts)
	levels := Levels(domain, names)

	logger := d.logger()
	logger.WithFields(logrus.Fields{
		"domain": domain,
		"levels": len(levels),
		"token":  token,
	}).Info("Checking for wildcards")

	type probed struct {
		level string
		addrs []string
	}
	exec := func(ctx context.Context, level string) runner.Outcome[probed] {
		out := resolver.Resolve(ctx, d.Resolver, ProbeName(token, level, domain))
		if !out.OK() {
			return runner.Failure[probed](out.Err)
		}
		return runner.Success(probed{level: level, addrs: out.Value})
	}

	opts := d.Options
	if opts.Name == "" {
		opts.Name = "wildcard"
	}
	results, _, err := runner.Run(ctx, levels, exec, opts)
	if err != nil {
		return 0, nil, err
	}

	var observations []Observation
	for _, r := range results {
		for _, addr := range r.addrs {
			observations = append(observations, Observation{Hostname: Hostname(r.level, domain), Address: addr})
		}
	}

	for _, o := range Minimize(observations) {
		rec := core.WildcardRecord{
			Subdomain: Relative(domain, o.Hostname),
			Domain:    domain,
			Address:   o.Address,
			Timestamp: ts,
		}
		if err := d.Store.Add(ctx, rec); err != nil {
			if errors.Is(err, core.ErrDuplicate) {
				logger.WithField("zone", rec.Zone()).Debug("Wildcard already stored")
				continue
			}
			return 0, nil, fmt.Errorf("failed to persist wildcard: %w", err)
		}
	}

	records, err := d.Store.Query(ctx, domain, ts)
	if err != nil {
		return 0, nil, err
	}

	logger.WithField("count", len(records)).Info("Wildcards that were identified")
	return len(records), records, nil
}

func (d *Detector) logger() logrus.FieldLogger {
	if d.Options.Logger != nil {
		return d.Options.Logger
	}
	return runner.DiscardLogger()
}
