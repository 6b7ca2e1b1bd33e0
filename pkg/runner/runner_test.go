package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jhaxce/subdive/pkg/core"
	"golang.org/x/time/rate"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		size      int
		wantCount int
	}{
		{name: "Empty", n: 0, size: 10, wantCount: 0},
		{name: "Single partial", n: 3, size: 10, wantCount: 1},
		{name: "Exact fit", n: 20, size: 10, wantCount: 2},
		{name: "Remainder", n: 25, size: 10, wantCount: 3},
		{name: "Large", n: 250000, size: 100000, wantCount: 3},
		{name: "Size one", n: 5, size: 1, wantCount: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunks(tt.n, tt.size)
			if len(chunks) != tt.wantCount {
				t.Fatalf("Chunks(%d, %d) returned %d chunks, want %d", tt.n, tt.size, len(chunks), tt.wantCount)
			}

			// Chunks must cover [0, n) exactly once, in order
			next := 0
			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("chunk %d has index %d", i, c.Index)
				}
				if c.Start != next {
					t.Errorf("chunk %d starts at %d, want %d", i, c.Start, next)
				}
				if c.Len() < 1 || c.Len() > tt.size {
					t.Errorf("chunk %d has length %d, want 1..%d", i, c.Len(), tt.size)
				}
				next = c.End
			}
			if next != tt.n {
				t.Errorf("chunks cover [0, %d), want [0, %d)", next, tt.n)
			}
		})
	}
}

func TestRun_CollectsSuccessesOnly(t *testing.T) {
	tasks := make([]int, 57)
	for i := range tasks {
		tasks[i] = i
	}

	exec := func(ctx context.Context, n int) Outcome[int] {
		if n%3 == 0 {
			return Failure[int](errors.New("no result"))
		}
		return Success(n * 2)
	}

	got, stats, err := Run(context.Background(), tasks, exec, Options{Workers: 4, ChunkSize: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sort.Ints(got)
	var want []int
	for _, n := range tasks {
		if n%3 != 0 {
			want = append(want, n*2)
		}
	}

	if len(got) != len(want) {
		t.Fatalf("Run() returned %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %d, want %d", i, got[i], want[i])
		}
	}

	if stats.Total != 57 || stats.Chunks != 6 {
		t.Errorf("stats = %+v, want Total 57 Chunks 6", stats)
	}
	if stats.Succeeded != len(want) || stats.Failed != 57-len(want) {
		t.Errorf("stats = %+v, want Succeeded %d Failed %d", stats, len(want), 57-len(want))
	}
}

func TestRun_ChunksAreSequential(t *testing.T) {
	const (
		total     = 95
		chunkSize = 20
		workers   = 6
	)

	tasks := make([]int, total)
	for i := range tasks {
		tasks[i] = i
	}

	var (
		finished  int64
		active    int64
		maxActive int64
		violation atomic.Value
		seen      sync.Map
	)

	exec := func(ctx context.Context, n int) Outcome[int] {
		if _, dup := seen.LoadOrStore(n, true); dup {
			violation.Store(fmt.Sprintf("task %d executed twice", n))
		}

		// Every task of the previous chunk must be done before this chunk starts
		chunk := n / chunkSize
		if done := atomic.LoadInt64(&finished); done < int64(chunk*chunkSize) {
			violation.Store(fmt.Sprintf("task %d started with only %d tasks finished", n, done))
		}

		cur := atomic.AddInt64(&active, 1)
		for {
			prev := atomic.LoadInt64(&maxActive)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxActive, prev, cur) {
				break
			}
		}

		time.Sleep(time.Millisecond)
		atomic.AddInt64(&active, -1)
		atomic.AddInt64(&finished, 1)
		return Success(n)
	}

	got, stats, err := Run(context.Background(), tasks, exec, Options{Workers: workers, ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v := violation.Load(); v != nil {
		t.Fatal(v)
	}
	if len(got) != total {
		t.Errorf("Run() returned %d values, want %d", len(got), total)
	}
	if stats.Chunks != 5 {
		t.Errorf("stats.Chunks = %d, want 5", stats.Chunks)
	}
	if maxActive > workers {
		t.Errorf("max concurrent tasks = %d, want <= %d", maxActive, workers)
	}
}

func TestRun_CancellationStopsFurtherChunks(t *testing.T) {
	const (
		total     = 250
		chunkSize = 100
	)

	tasks := make([]int, total)
	for i := range tasks {
		tasks[i] = i
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var maxStarted int64 = -1
	var started int64
	exec := func(ctx context.Context, n int) Outcome[int] {
		for {
			prev := atomic.LoadInt64(&maxStarted)
			if int64(n) <= prev || atomic.CompareAndSwapInt64(&maxStarted, prev, int64(n)) {
				break
			}
		}
		if atomic.AddInt64(&started, 1) == 50 {
			cancel()
		}
		// Simulate a slow network call that ignores cancellation
		time.Sleep(2 * time.Millisecond)
		return Success(n)
	}

	got, _, err := Run(ctx, tasks, exec, Options{Workers: 4, ChunkSize: chunkSize})
	if !errors.Is(err, core.ErrInterrupted) {
		t.Fatalf("Run() error = %v, want ErrInterrupted", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want wrapped context.Canceled", err)
	}
	if got != nil {
		t.Errorf("Run() returned %d values after interrupt, want nil", len(got))
	}

	// Give abandoned workers time to finish before inspecting counters
	time.Sleep(50 * time.Millisecond)
	if m := atomic.LoadInt64(&maxStarted); m >= chunkSize {
		t.Errorf("task %d from a later chunk started after interrupt", m)
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	exec := func(ctx context.Context, n int) Outcome[int] {
		atomic.AddInt64(&calls, 1)
		return Success(n)
	}

	_, _, err := Run(ctx, []int{1, 2, 3}, exec, Options{Workers: 2})
	if !errors.Is(err, core.ErrInterrupted) {
		t.Fatalf("Run() error = %v, want ErrInterrupted", err)
	}
	if calls != 0 {
		t.Errorf("executor called %d times, want 0", calls)
	}
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	exec := func(ctx context.Context, n int) Outcome[int] {
		if n == 2 {
			panic("boom")
		}
		return Success(n)
	}

	got, stats, err := Run(context.Background(), []int{1, 2, 3}, exec, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 2 || stats.Failed != 1 {
		t.Errorf("got %v with stats %+v, want 2 values and 1 failure", got, stats)
	}
}

type recordingProgress struct {
	mu     sync.Mutex
	starts []string
	ticks  int
	done   int
}

func (p *recordingProgress) StartChunk(index, total, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, fmt.Sprintf("%d/%d:%d", index+1, total, size))
}

func (p *recordingProgress) Increment() {
	p.mu.Lock()
	p.ticks++
	p.mu.Unlock()
}

func (p *recordingProgress) FinishChunk() {
	p.mu.Lock()
	p.done++
	p.mu.Unlock()
}

func TestRun_ReportsProgress(t *testing.T) {
	tasks := make([]int, 25)
	exec := func(ctx context.Context, n int) Outcome[int] { return Success(n) }

	prog := &recordingProgress{}
	if _, _, err := Run(context.Background(), tasks, exec, Options{Workers: 3, ChunkSize: 10, Progress: prog}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"1/3:10", "2/3:10", "3/3:5"}
	if fmt.Sprint(prog.starts) != fmt.Sprint(want) {
		t.Errorf("chunk starts = %v, want %v", prog.starts, want)
	}
	if prog.ticks != 25 {
		t.Errorf("progress ticks = %d, want 25", prog.ticks)
	}
	if prog.done != 3 {
		t.Errorf("finished chunks = %d, want 3", prog.done)
	}
}

func TestRun_LimiterPacesSubmission(t *testing.T) {
	tasks := make([]int, 5)
	exec := func(ctx context.Context, n int) Outcome[int] {
		return Success(n)
	}

	// 20/s with burst 1: four waits of 50ms after the first token
	limiter := rate.NewLimiter(rate.Limit(20), 1)

	start := time.Now()
	values, stats, err := Run(context.Background(), tasks, exec, Options{Workers: 5, Limiter: limiter})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(values) != 5 || stats.Succeeded != 5 {
		t.Fatalf("got %d values, stats %+v", len(values), stats)
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("Run() finished in %v, limiter not applied", elapsed)
	}
}
