package photo

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of recent photos kept by a Window.
const DefaultCapacity = 10

// Photo is a completed image received from the device.
// Data must not be modified once the photo has been published.
type Photo struct {
	// Index is the arrival index assigned on completion. It starts at 1 and
	// increases by one for every photo produced on a link.
	Index uint64

	// Data holds the JPEG bytes.
	Data []byte

	// ReceivedAt is when the final chunk of the transfer arrived.
	ReceivedAt time.Time
}

// Size returns the image size in bytes.
func (p Photo) Size() int {
	return len(p.Data)
}

// Window keeps the most recent photos in arrival order.
// Pushing beyond capacity silently evicts the oldest photo.
type Window struct {
	mu      sync.Mutex
	ring    []Photo
	head    int // index of the oldest photo
	count   int
	evicted uint64
}

// NewWindow creates a window holding at most capacity photos.
// A capacity below 1 falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Window{ring: make([]Photo, capacity)}
}

// Push appends a photo, evicting the oldest one when full.
func (w *Window) Push(p Photo) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count < len(w.ring) {
		w.ring[(w.head+w.count)%len(w.ring)] = p
		w.count++
		return
	}

	// Full: overwrite the oldest slot and advance head.
	w.ring[w.head] = p
	w.head = (w.head + 1) % len(w.ring)
	w.evicted++
}

// Snapshot returns a copy of the photos in arrival order.
func (w *Window) Snapshot() []Photo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collect(0)
}

// Since returns the photos still in the window whose Index is greater
// than index, in arrival order.
func (w *Window) Since(index uint64) []Photo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collect(index)
}

// Latest returns the most recently pushed photo.
func (w *Window) Latest() (Photo, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count == 0 {
		return Photo{}, false
	}
	return w.ring[(w.head+w.count-1)%len(w.ring)], true
}

// Len returns the number of photos currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.ring)
}

// Evicted returns how many photos have been dropped on overflow.
func (w *Window) Evicted() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.evicted
}

func (w *Window) collect(after uint64) []Photo {
	out := make([]Photo, 0, w.count)
	for i := 0; i < w.count; i++ {
		p := w.ring[(w.head+i)%len(w.ring)]
		if p.Index > after {
			out = append(out, p)
		}
	}
	return out
}
