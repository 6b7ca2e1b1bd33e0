package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jhaxce/subdive/pkg/core"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "subdive.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func TestStore_AddAndQuery(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			records := []core.WildcardRecord{
				{Subdomain: "b", Domain: "example.com", Address: "192.0.2.1", Timestamp: 100},
				{Subdomain: "", Domain: "example.com", Address: "192.0.2.9", Timestamp: 100},
				{Subdomain: "b", Domain: "example.com", Address: "192.0.2.1", Timestamp: 200},
				{Subdomain: "x", Domain: "example.org", Address: "192.0.2.1", Timestamp: 100},
			}
			for _, rec := range records {
				if err := s.Add(ctx, rec); err != nil {
					t.Fatalf("Add(%+v) error = %v", rec, err)
				}
			}

			got, err := s.Query(ctx, "example.com", 100)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != 2 || got[0].Subdomain != "" || got[1].Subdomain != "b" {
				t.Errorf("Query() = %+v", got)
			}

			all, err := s.QueryDomain(ctx, "example.com")
			if err != nil {
				t.Fatalf("QueryDomain() error = %v", err)
			}
			if len(all) != 3 {
				t.Errorf("QueryDomain() returned %d records, want 3", len(all))
			}

			none, err := s.Query(ctx, "example.com", 999)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(none) != 0 {
				t.Errorf("Query() for unknown run = %+v", none)
			}
		})
	}
}

func TestStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	rec := core.WildcardRecord{Subdomain: "b", Domain: "example.com", Address: "192.0.2.1", Timestamp: 100}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Add(ctx, rec); err != nil {
				t.Fatalf("first Add() error = %v", err)
			}
			err := s.Add(ctx, rec)
			if !errors.Is(err, core.ErrDuplicate) {
				t.Fatalf("second Add() error = %v, want ErrDuplicate", err)
			}

			got, _ := s.Query(ctx, "example.com", 100)
			if len(got) != 1 {
				t.Errorf("Query() returned %d records, want 1", len(got))
			}
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdive.db")
	rec := core.WildcardRecord{Subdomain: "dev", Domain: "example.com", Address: "2001:db8::1", Timestamp: 42}

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := db.Add(context.Background(), rec); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	db.Close()

	db, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("second OpenSQLite() error = %v", err)
	}
	defer db.Close()

	got, err := db.Query(context.Background(), "example.com", 42)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0] != rec {
		t.Errorf("Query() = %+v, want [%+v]", got, rec)
	}
}

func TestMemory_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	if err := m.Add(ctx, core.WildcardRecord{Domain: "example.com"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Add() error = %v, want context.Canceled", err)
	}
}
