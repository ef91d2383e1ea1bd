package publish

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
)

// WriterPublisher writes each message as one JSON line.
type WriterPublisher struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterPublisher(w io.Writer) *WriterPublisher {
	return &WriterPublisher{w: w}
}

func (p *WriterPublisher) Publish(ctx context.Context, rec extract.Record) error {
	if err := ctx.Err(); err != nil {
		return common.Kind(common.ErrPublishFailure, err)
	}
	b, err := BuildMessage(rec).Encode()
	if err != nil {
		return common.Kind(common.ErrPublishFailure, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(append(b, '\n')); err != nil {
		return common.Kind(common.ErrPublishFailure, err)
	}
	return nil
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, rec extract.Record) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
