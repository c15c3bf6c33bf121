package chunk

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/photo"
)

// MaxPhotoSize bounds the bytes accumulated for a single transfer (4 MiB).
const MaxPhotoSize = 4 * 1024 * 1024

const idle = -1

// Stats is a point-in-time view of reassembly counters.
type Stats struct {
	Completed uint64 // photos emitted
	Discarded uint64 // in-progress transfers thrown away
	Noise     uint64 // records dropped while idle or undecodable
	Bytes     uint64 // total bytes of emitted photos
}

// Reassembler turns an ordered stream of records into photos.
//
// OnChunk must be called from a single goroutine (the link's read loop).
// Stats may be read concurrently.
type Reassembler struct {
	logger  *zap.Logger
	maxSize int
	now     func() time.Time

	// Transfer state, owned by the OnChunk caller.
	expected int
	buf      []byte
	next     uint64 // arrival index of the next photo

	statsMu sync.Mutex
	stats   Stats
}

// Option configures a Reassembler.
type Option func(*Reassembler)

// WithLogger sets the logger used for dropped chunks.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reassembler) { r.logger = l }
}

// WithMaxPhotoSize overrides MaxPhotoSize.
func WithMaxPhotoSize(n int) Option {
	return func(r *Reassembler) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// WithClock overrides the time source used to stamp photos.
func WithClock(now func() time.Time) Option {
	return func(r *Reassembler) { r.now = now }
}

// NewReassembler creates an idle Reassembler.
func NewReassembler(opts ...Option) *Reassembler {
	r := &Reassembler{
		logger:   zap.NewNop(),
		maxSize:  MaxPhotoSize,
		now:      time.Now,
		expected: idle,
		next:     1,
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With(zap.String("component", "reassembler"))
	return r
}

// Receiving reports whether a transfer is in progress.
func (r *Reassembler) Receiving() bool {
	return r.expected != idle
}

// OnNotification decodes a raw notification and feeds it to OnChunk.
func (r *Reassembler) OnNotification(b []byte) (photo.Photo, bool) {
	rec, err := DecodeRecord(b)
	if err != nil {
		r.drop(err, false)
		return photo.Photo{}, false
	}
	return r.OnChunk(rec)
}

// OnChunk advances the transfer state machine. It returns a photo only when
// an END record completes a clean transfer.
func (r *Reassembler) OnChunk(rec Record) (photo.Photo, bool) {
	switch {
	case !rec.End && rec.Seq == 0:
		if r.Receiving() {
			r.drop(&FramingError{
				Kind: FramingDiscontinuity,
				Msg:  fmt.Sprintf("START received while expecting chunk %d", r.expected),
			}, true)
		}
		r.begin(rec.Payload)
		return photo.Photo{}, false

	case !r.Receiving():
		msg := fmt.Sprintf("chunk %d received with no transfer in progress", rec.Seq)
		if rec.End {
			msg = "END received with no transfer in progress"
		}
		r.drop(&FramingError{Kind: FramingNoise, Msg: msg}, false)
		return photo.Photo{}, false

	case rec.End:
		if len(r.buf) == 0 {
			r.drop(&FramingError{Kind: FramingEmptyEnd, Msg: "END received with empty buffer"}, true)
			return photo.Photo{}, false
		}
		return r.finish(), true

	case int(rec.Seq) != r.expected:
		r.drop(&FramingError{
			Kind: FramingDiscontinuity,
			Msg:  fmt.Sprintf("expected chunk %d, got %d", r.expected, rec.Seq),
		}, true)
		return photo.Photo{}, false
	}

	if len(r.buf)+len(rec.Payload) > r.maxSize {
		r.drop(&FramingError{
			Kind: FramingOversize,
			Msg:  fmt.Sprintf("transfer exceeds %d bytes", r.maxSize),
		}, true)
		return photo.Photo{}, false
	}

	r.buf = append(r.buf, rec.Payload...)
	r.expected++
	return photo.Photo{}, false
}

// Stats returns a snapshot of the counters.
func (r *Reassembler) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Reassembler) begin(payload []byte) {
	// Fresh arena per transfer; the previous buffer may be held by an
	// emitted photo.
	r.buf = make([]byte, 0, max(len(payload)*16, 4096))
	r.buf = append(r.buf, payload...)
	r.expected = 1
}

func (r *Reassembler) finish() photo.Photo {
	p := photo.Photo{
		Index:      r.next,
		Data:       r.buf,
		ReceivedAt: r.now(),
	}
	r.next++
	r.reset()

	r.statsMu.Lock()
	r.stats.Completed++
	r.stats.Bytes += uint64(len(p.Data))
	r.statsMu.Unlock()

	r.logger.Debug("photo reassembled",
		zap.Uint64("index", p.Index),
		zap.Int("bytes", len(p.Data)),
	)
	return p
}

// drop logs err and resets the transfer when discard is set.
func (r *Reassembler) drop(err error, discard bool) {
	fields := []zap.Field{zap.Error(err)}
	if discard {
		fields = append(fields, zap.Int("discarded_bytes", len(r.buf)))
		r.reset()
	}
	r.logger.Warn("dropping chunk", fields...)

	r.statsMu.Lock()
	if discard {
		r.stats.Discarded++
	} else {
		r.stats.Noise++
	}
	r.statsMu.Unlock()
}

func (r *Reassembler) reset() {
	r.expected = idle
	r.buf = nil
}
