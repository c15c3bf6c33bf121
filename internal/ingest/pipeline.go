// Package ingest connects the device notification stream to a session:
// notifications are reassembled into photos, kept in a bounded window, and
// delivered to the session by a coalescing background job.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/chunk"
	"github.com/abhisek/snapask/internal/coalesce"
	"github.com/abhisek/snapask/internal/photo"
)

// Sink receives batches of new photos in arrival order. *agent.Agent
// satisfies it.
type Sink interface {
	AddPhotos(ctx context.Context, batch []photo.Photo) error
}

// Transform rewrites image bytes before delivery, e.g. to rotate a sensor
// that is mounted sideways. It must not modify its input.
type Transform func(data []byte) ([]byte, error)

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Chunks    chunk.Stats    `json:"chunks"`
	Scheduler coalesce.Stats `json:"scheduler"`
	Window    int            `json:"window"`
	Evicted   uint64         `json:"evicted"`
	Delivered uint64         `json:"delivered"`
	Last      uint64         `json:"last"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline and its reassembler.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithWindowSize sets the photo window capacity.
func WithWindowSize(n int) Option {
	return func(p *Pipeline) { p.windowSize = n }
}

// WithTransform installs a transform applied to every delivered photo.
func WithTransform(t Transform) Option {
	return func(p *Pipeline) { p.transform = t }
}

// WithReassemblerOptions passes options through to the reassembler.
func WithReassemblerOptions(opts ...chunk.Option) Option {
	return func(p *Pipeline) { p.chunkOpts = append(p.chunkOpts, opts...) }
}

// Pipeline owns the reassembler, the photo window and the scheduler that
// watches it.
//
// HandleNotification must be called from a single goroutine.
type Pipeline struct {
	sink       Sink
	logger     *zap.Logger
	windowSize int
	transform  Transform
	chunkOpts  []chunk.Option

	reassembler *chunk.Reassembler
	window      *photo.Window
	scheduler   *coalesce.Scheduler

	// last is the index of the newest photo handed to the sink. Written
	// only by the scheduler job.
	last      atomic.Uint64
	delivered atomic.Uint64
}

// New creates a pipeline delivering to sink.
func New(sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:       sink,
		logger:     zap.NewNop(),
		windowSize: photo.DefaultCapacity,
	}
	for _, o := range opts {
		o(p)
	}

	p.reassembler = chunk.NewReassembler(append([]chunk.Option{chunk.WithLogger(p.logger)}, p.chunkOpts...)...)
	p.window = photo.NewWindow(p.windowSize)
	p.scheduler = coalesce.New(p.deliver,
		coalesce.WithLogger(p.logger),
		coalesce.WithName("photo-ingest"))
	p.logger = p.logger.With(zap.String("component", "ingest"))
	return p
}

// HandleNotification feeds one raw device notification through the
// reassembler. A completed photo is pushed to the window and the scheduler
// is invalidated.
func (p *Pipeline) HandleNotification(b []byte) {
	ph, ok := p.reassembler.OnNotification(b)
	if !ok {
		return
	}
	p.Push(ph)
}

// Push adds an already assembled photo, bypassing the reassembler.
func (p *Pipeline) Push(ph photo.Photo) {
	p.window.Push(ph)
	p.logger.Debug("photo received", zap.Uint64("index", ph.Index), zap.Int("bytes", ph.Size()))
	p.scheduler.Invalidate()
}

// Window exposes the photo window for read-only use.
func (p *Pipeline) Window() *photo.Window {
	return p.window
}

// Flush waits until every photo pushed so far has been offered to the sink.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.scheduler.Wait(ctx)
}

// Close stops the scheduler. A run in progress is cancelled and awaited.
func (p *Pipeline) Close() {
	p.scheduler.Close()
}

// Stats returns current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Chunks:    p.reassembler.Stats(),
		Scheduler: p.scheduler.Stats(),
		Window:    p.window.Len(),
		Evicted:   p.window.Evicted(),
		Delivered: p.delivered.Load(),
		Last:      p.last.Load(),
	}
}

// deliver is the scheduler job. Photos evicted from the window before the
// job runs are never delivered.
func (p *Pipeline) deliver(ctx context.Context) error {
	batch := p.window.Since(p.last.Load())
	if len(batch) == 0 {
		return nil
	}

	if p.transform != nil {
		for i := range batch {
			out, err := p.transform(batch[i].Data)
			if err != nil {
				p.logger.Warn("transform failed, delivering original",
					zap.Uint64("index", batch[i].Index), zap.Error(err))
				continue
			}
			batch[i].Data = out
		}
	}

	if err := p.sink.AddPhotos(ctx, batch); err != nil {
		return fmt.Errorf("deliver %d photos: %w", len(batch), err)
	}
	p.last.Store(batch[len(batch)-1].Index)
	p.delivered.Add(uint64(len(batch)))
	return nil
}
