// Package runner executes large batches of independent probe tasks in
// sequential, bounded-size chunks, each chunk served by its own worker pool.
package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Executor performs one unit of work. It must honour ctx and bound its own
// network calls with timeouts.
type Executor[T, R any] func(ctx context.Context, task T) Outcome[R]

// Progress receives per-chunk and per-task progress notifications
type Progress interface {
	// StartChunk is called before the first task of a chunk is submitted.
	// index is zero-based; total is the number of chunks in the run.
	StartChunk(index, total, size int)
	// Increment is called once per drained task
	Increment()
	// FinishChunk is called after every task of the chunk has been drained
	FinishChunk()
}

// Options configures a run
type Options struct {
	Name      string // operation name used in logs
	Workers   int
	ChunkSize int
	Limiter   *rate.Limiter // optional submission pacing
	Progress  Progress
	Logger    logrus.FieldLogger
}

// Stats summarises a run
type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Chunks    int `json:"chunks"`
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.ChunkSize < 1 {
		o.ChunkSize = core.DefaultChunkSize
	}
	if o.Progress == nil {
		o.Progress = nopProgress{}
	}
	if o.Logger == nil {
		o.Logger = DiscardLogger()
	}
	if o.Name == "" {
		o.Name = "probe"
	}
	return o
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Run executes exec for every task and returns the values of all successful
// outcomes. Tasks are processed in chunks of at most opts.ChunkSize; a chunk's
// pool is torn down before the next chunk starts. Result order is unspecified.
//
// When ctx is cancelled the in-flight chunk is abandoned without waiting for
// its running tasks, no further chunk is started, and Run returns
// core.ErrInterrupted with nil results.
func Run[T, R any](ctx context.Context, tasks []T, exec Executor[T, R], opts Options) ([]R, Stats, error) {
	opts = opts.withDefaults()

	chunks := Chunks(len(tasks), opts.ChunkSize)
	stats := Stats{Total: len(tasks), Chunks: len(chunks)}

	var values []R
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("%w: %w", core.ErrInterrupted, err)
		}

		opts.Logger.WithFields(logrus.Fields{
			"op":    opts.Name,
			"chunk": fmt.Sprintf("%d/%d", c.Index+1, len(chunks)),
			"size":  c.Len(),
		}).Debug("starting chunk")

		outcomes, err := runChunk(ctx, tasks[c.Start:c.End], c.Index, len(chunks), exec, opts)
		for _, o := range outcomes {
			if o.OK() {
				stats.Succeeded++
				values = append(values, o.Value)
			} else {
				stats.Failed++
			}
		}
		if err != nil {
			return nil, stats, err
		}
	}

	return values, stats, nil
}

// runChunk submits every task of one chunk to a fresh pool and drains
// outcomes in completion order.
func runChunk[T, R any](ctx context.Context, chunk []T, index, total int, exec Executor[T, R], opts Options) ([]Outcome[R], error) {
	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	// Release does not wait for running tasks
	defer pool.Release()

	chunkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to the chunk size so abandoned workers never block on send
	outcomes := make(chan Outcome[R], len(chunk))

	opts.Progress.StartChunk(index, total, len(chunk))

	go func() {
		for _, task := range chunk {
			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(chunkCtx); err != nil {
					return
				}
			}
			if chunkCtx.Err() != nil {
				return
			}

			err := pool.Submit(func() {
				outcomes <- execute(chunkCtx, task, exec, opts)
			})
			if err != nil {
				outcomes <- Failure[R](fmt.Errorf("failed to submit task: %w", err))
			}
		}
	}()

	collected := make([]Outcome[R], 0, len(chunk))
	for len(collected) < len(chunk) {
		select {
		case <-ctx.Done():
			return collected, fmt.Errorf("%w: %w", core.ErrInterrupted, ctx.Err())
		case o := <-outcomes:
			collected = append(collected, o)
			opts.Progress.Increment()
		}
	}

	opts.Progress.FinishChunk()
	return collected, nil
}

// execute runs one task, converting panics into failures
func execute[T, R any](ctx context.Context, task T, exec Executor[T, R], opts Options) (o Outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			o = Failure[R](fmt.Errorf("probe panicked: %v", r))
		}
		if o.Err != nil {
			opts.Logger.WithFields(logrus.Fields{
				"op":     opts.Name,
				"task":   task,
				"reason": o.Err,
			}).Debug("no result")
		}
	}()

	return exec(ctx, task)
}

type nopProgress struct{}

func (nopProgress) StartChunk(int, int, int) {}
func (nopProgress) Increment()               {}
func (nopProgress) FinishChunk()             {}
