package wildcard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/resolver"
	"github.com/jhaxce/subdive/pkg/resolver/resolvertest"
	"github.com/jhaxce/subdive/pkg/runner"
	"github.com/jhaxce/subdive/pkg/store"
)

const runTime = 1700000000

func newDetector(t *testing.T, s store.Store) *Detector {
	t.Helper()

	srv := resolvertest.NewServer(t,
		"*.b.example.com. 60 IN A 192.0.2.1",
		"*.a.b.example.com. 60 IN A 192.0.2.1",
		"*.c.example.com. 60 IN A 192.0.2.2",
		"www.example.com. 60 IN A 192.0.2.80",
	)

	return &Detector{
		Resolver: resolver.NewDirect([]string{srv.Addr}, 2*time.Second),
		Store:    s,
		Options:  runner.Options{Workers: 4, ChunkSize: 2},
		Now:      func() time.Time { return time.Unix(runTime, 0) },
		Token:    func(ts int64) string { return "probe-1700000000" },
	}
}

func TestDetector_Detect(t *testing.T) {
	s := store.NewMemory()
	d := newDetector(t, s)
	names := []string{"x.a.b", "y.b", "z.c", "w.d", "www"}

	count, records, err := d.Detect(context.Background(), "example.com", names)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	want := []core.WildcardRecord{
		{Subdomain: "b", Domain: "example.com", Address: "192.0.2.1", Timestamp: runTime},
		{Subdomain: "c", Domain: "example.com", Address: "192.0.2.2", Timestamp: runTime},
	}
	if count != len(want) || len(records) != len(want) {
		t.Fatalf("Detect() = %d, %+v, want %+v", count, records, want)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record[%d] = %+v, want %+v", i, records[i], want[i])
		}
	}

	// Re-detection in the same run second is idempotent
	count, _, err = d.Detect(context.Background(), "example.com", names)
	if err != nil {
		t.Fatalf("second Detect() error = %v", err)
	}
	if count != len(want) {
		t.Errorf("second Detect() count = %d, want %d", count, len(want))
	}
}

func TestDetector_NoWildcards(t *testing.T) {
	d := newDetector(t, store.NewMemory())

	count, records, err := d.Detect(context.Background(), "example.com", []string{"www", "mail"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if count != 0 || len(records) != 0 {
		t.Errorf("Detect() = %d, %+v, want none", count, records)
	}
}

type brokenStore struct {
	store.Store
}

func (brokenStore) Add(context.Context, core.WildcardRecord) error {
	return errors.New("disk I/O error")
}

func TestDetector_StoreFailure(t *testing.T) {
	d := newDetector(t, brokenStore{Store: store.NewMemory()})

	if _, _, err := d.Detect(context.Background(), "example.com", []string{"y.b"}); err == nil {
		t.Fatal("Detect() expected persistence error")
	}
}

func TestDetector_Interrupted(t *testing.T) {
	d := newDetector(t, store.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, records, err := d.Detect(ctx, "example.com", []string{"y.b"})
	if !errors.Is(err, core.ErrInterrupted) {
		t.Fatalf("Detect() error = %v, want ErrInterrupted", err)
	}
	if records != nil {
		t.Errorf("Detect() records = %+v, want nil", records)
	}
}

func TestDetector_NoDomain(t *testing.T) {
	d := newDetector(t, store.NewMemory())

	if _, _, err := d.Detect(context.Background(), " ", nil); !errors.Is(err, core.ErrNoDomain) {
		t.Errorf("Detect() error = %v, want ErrNoDomain", err)
	}
}
