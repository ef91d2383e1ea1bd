package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
)

type fakeProcessor struct {
	mu      sync.Mutex
	sources []string
	fail    map[string]bool
}

func (p *fakeProcessor) ProcessImage(_ context.Context, img capture.Image, source string) (pipeline.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, source)
	if p.fail[source] {
		return pipeline.Outcome{}, errors.New("recognition failed")
	}
	return pipeline.Outcome{Record: extract.Record{Nome: string(img.Data)}}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestProcessorQueue_ProcessesAllJobs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, "Ana")
	writeFile(t, b, "Bia")

	proc := &fakeProcessor{fail: map[string]bool{"file:" + b: true}}
	var mu sync.Mutex
	results := map[string]Result{}
	q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(1), WithProcessTimeout(time.Second),
		WithResultHandler(func(r Result) {
			mu.Lock()
			results[r.Job.Path] = r
			mu.Unlock()
		}))

	missing := filepath.Join(dir, "missing.png")
	for _, p := range []string{a, b, missing} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))
	}
	q.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 3)
	assert.NoError(t, results[a].Err)
	assert.Equal(t, "Ana", results[a].Outcome.Record.Nome)
	assert.NotEmpty(t, results[a].Job.TraceID)
	assert.False(t, results[a].Job.SubmittedAt.IsZero())
	assert.Error(t, results[b].Err)
	assert.Error(t, results[missing].Err)
	assert.Len(t, proc.sources, 2, "unreadable files never reach the processor")
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "x.png"}), ErrQueueClosed)
}

type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingProcessor) ProcessImage(_ context.Context, _ capture.Image, _ string) (pipeline.Outcome, error) {
	p.started <- struct{}{}
	<-p.release
	return pipeline.Outcome{}, nil
}

func TestProcessorQueue_FullQueue(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	writeFile(t, img, "x")

	proc := &blockingProcessor{started: make(chan struct{}, 4), release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: img}))
	<-proc.started
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: img}), "fills the buffer")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Path: img}), context.DeadlineExceeded)

	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(context.Background(), Job{Path: img}) }()

	shutdown := make(chan struct{})
	go func() {
		q.Shutdown(context.Background())
		close(shutdown)
	}()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked enqueue was not released by shutdown")
	}

	close(proc.release)
	select {
	case <-shutdown:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not drain")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.png"), "")
	writeFile(t, filepath.Join(dir, "a.JPG"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")
	writeFile(t, filepath.Join(dir, ".hidden.png"), "")
	writeFile(t, filepath.Join(dir, "sub", "c.jpeg"), "")
	writeFile(t, filepath.Join(dir, ".cache", "d.png"), "")

	flat, err := Discover(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.png")}, flat)

	deep, err := Discover(dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.JPG"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "c.jpeg"),
	}, deep)

	_, err = Discover(filepath.Join(dir, "nope"), false)
	assert.Error(t, err)
}
