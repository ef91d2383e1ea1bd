// Package async processes batches of form images on a worker pool.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
)

// Job is one image file to process.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Result is the outcome of a Job.
type Result struct {
	Job      Job
	Outcome  pipeline.Outcome
	Err      error
	Duration time.Duration
	WorkerID int
}

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("batch queue closed")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ImageProcessor is the part of the orchestrator the workers use.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, img capture.Image, source string) (pipeline.Outcome, error)
}

type ProcessorQueue struct {
	proc     ImageProcessor
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onResult func(Result)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	quit    chan struct{}
	senders sync.WaitGroup
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler receives every result. It is called from worker
// goroutines concurrently.
func WithResultHandler(fn func(Result)) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

func NewProcessorQueue(proc ImageProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		q.wg.Add(q.workers)
		for id := 1; id <= q.workers; id++ {
			go q.work(id)
		}
	})
}

// work drains the job channel until Shutdown closes it.
func (q *ProcessorQueue) work(id int) {
	defer q.wg.Done()
	log := q.logger.With("worker_id", id)
	for job := range q.ch {
		res := q.process(id, job)
		if res.Err != nil {
			log.Error("batch image failed", "path", job.Path, "trace_id", job.TraceID, "error", res.Err)
		} else {
			log.Info("batch image done", "path", job.Path, "scan_id", res.Outcome.ScanID,
				"missing", len(res.Outcome.Record.Missing()), "duration", res.Duration)
		}
		if q.onResult != nil {
			q.onResult(res)
		}
	}
}

func (q *ProcessorQueue) process(workerID int, job Job) Result {
	start := time.Now()
	res := Result{Job: job, WorkerID: workerID}

	data, err := os.ReadFile(job.Path)
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", job.Path, err)
		res.Duration = time.Since(start)
		return res
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	img := capture.Image{Data: data, Format: constants.NormalizeExt(filepath.Ext(job.Path)), Captured: start}
	res.Outcome, res.Err = q.proc.ProcessImage(ctx, img, "file:"+job.Path)
	res.Duration = time.Since(start)
	return res
}

// Enqueue hands job to the workers. When the buffer is full it blocks
// until a worker frees a slot, ctx is done, or Shutdown starts.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("enqueue %s: %w", job.Path, ErrQueueClosed)
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Debug("batch queue full, waiting", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", job.Path, ctx.Err())
	case <-q.quit:
		return fmt.Errorf("enqueue %s: %w", job.Path, ErrQueueClosed)
	}
}

// Shutdown stops accepting jobs, releases blocked Enqueue calls and waits
// for the workers to drain what was queued.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("batch queue shutdown cut short", "error", ctx.Err())
	case <-done:
		q.logger.Debug("batch queue drained")
	}
}
