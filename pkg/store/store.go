// Package store persists wildcard records produced by detection runs.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/jhaxce/subdive/pkg/core"
)

// Store is the wildcard record persistence contract. Add returns an error
// wrapping core.ErrDuplicate when the identical record already exists.
type Store interface {
	Add(ctx context.Context, rec core.WildcardRecord) error
	// Query returns the records of one detection run
	Query(ctx context.Context, domain string, timestamp int64) ([]core.WildcardRecord, error)
	// QueryDomain returns every record ever stored for domain
	QueryDomain(ctx context.Context, domain string) ([]core.WildcardRecord, error)
	Close() error
}

// Memory is an in-process Store
type Memory struct {
	mu      sync.RWMutex
	seen    map[core.WildcardRecord]struct{}
	records []core.WildcardRecord
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{seen: make(map[core.WildcardRecord]struct{})}
}

// Add stores rec unless it is already present
func (m *Memory) Add(ctx context.Context, rec core.WildcardRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[rec]; ok {
		return duplicate(rec)
	}
	m.seen[rec] = struct{}{}
	m.records = append(m.records, rec)
	return nil
}

// Query returns the records of domain detected at timestamp
func (m *Memory) Query(ctx context.Context, domain string, timestamp int64) ([]core.WildcardRecord, error) {
	return m.filter(ctx, func(r core.WildcardRecord) bool {
		return r.Domain == domain && r.Timestamp == timestamp
	})
}

// QueryDomain returns all records of domain
func (m *Memory) QueryDomain(ctx context.Context, domain string) ([]core.WildcardRecord, error) {
	return m.filter(ctx, func(r core.WildcardRecord) bool {
		return r.Domain == domain
	})
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) filter(ctx context.Context, keep func(core.WildcardRecord) bool) ([]core.WildcardRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.WildcardRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	Sort(out)
	return out, nil
}

// Sort orders records by timestamp, zone and address
func Sort(records []core.WildcardRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Subdomain != b.Subdomain {
			return a.Subdomain < b.Subdomain
		}
		return a.Address < b.Address
	})
}
