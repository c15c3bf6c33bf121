// Package capture records raw device notifications to a file and plays them
// back. A capture file is a sequence of frames: a 4-byte big-endian payload
// length followed by a msgpack-encoded Entry.
package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// LengthPrefixSize is the size of the frame length prefix.
	LengthPrefixSize = 4
	// MaxFrameSize bounds a single frame (1 MiB), including the prefix.
	MaxFrameSize = 1 << 20
	// MaxPayloadSize is the largest encoded Entry.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
)

// Entry is one recorded notification.
type Entry struct {
	// At is the receive time in Unix nanoseconds.
	At   int64  `msgpack:"at"`
	Data []byte `msgpack:"data"`
}

// Time returns At as a time.Time.
func (e Entry) Time() time.Time {
	return time.Unix(0, e.At)
}

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial is a truncated frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge is a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode is an undecodable payload.
	FrameErrorDecode
)

// FrameError describes a malformed capture frame.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether reading cannot continue past this error.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError reports whether err is a fatal *FrameError.
func IsFatalFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.IsFatal()
}

// Writer appends entries to a capture stream. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   *bufio.Writer
	now func() time.Time
	n   int
}

// NewWriter creates a Writer on w. Call Flush before closing w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), now: time.Now}
}

// Record stamps data with the current time and writes it.
func (w *Writer) Record(data []byte) error {
	return w.Write(Entry{At: w.now().UnixNano(), Data: data})
}

// Write encodes and appends one entry.
func (w *Writer) Write(e Entry) error {
	payload, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.n++
	return nil
}

// Flush writes buffered frames to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}

// Count returns the number of entries written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Reader decodes entries from a capture stream.
type Reader struct {
	r io.Reader
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next entry.
//
// Errors:
//   - io.EOF: the stream ended on a frame boundary
//   - *FrameError: a truncated, oversized or undecodable frame
func (r *Reader) Next() (Entry, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if err == io.EOF {
			return Entry{}, io.EOF
		}
		return Entry{}, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxPayloadSize {
		return Entry{}, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", size, MaxPayloadSize),
		}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Entry{}, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}

	var e Entry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		return Entry{}, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode entry", Err: err}
	}
	return e, nil
}

// ReplayOptions controls Replay pacing.
type ReplayOptions struct {
	// Realtime sleeps between entries to reproduce the recorded gaps.
	Realtime bool
	// Speed divides recorded gaps when Realtime is set. Zero means 1.
	Speed float64
}

// Replay reads every entry from r and passes its data to handle in order.
// Undecodable frames are skipped; fatal frame errors stop the replay. It
// returns the number of entries delivered.
func Replay(ctx context.Context, r io.Reader, opts ReplayOptions, handle func([]byte)) (int, error) {
	cr := NewReader(r)
	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}

	var (
		n    int
		prev int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		e, err := cr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			if IsFatalFrameError(err) {
				return n, fmt.Errorf("replay entry %d: %w", n+1, err)
			}
			continue
		}

		if opts.Realtime && prev != 0 && e.At > prev {
			gap := time.Duration(float64(e.At-prev) / speed)
			t := time.NewTimer(gap)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return n, ctx.Err()
			}
		}
		prev = e.At

		handle(e.Data)
		n++
	}
}
