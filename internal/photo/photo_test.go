package photo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func photoAt(i uint64) Photo {
	return Photo{Index: i, Data: []byte{byte(i)}}
}

func indexes(ps []Photo) []uint64 {
	out := make([]uint64, len(ps))
	for i, p := range ps {
		out[i] = p.Index
	}
	return out
}

func TestWindow_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewWindow(0).Cap())
	assert.Equal(t, DefaultCapacity, NewWindow(-3).Cap())
	assert.Equal(t, 4, NewWindow(4).Cap())
}

func TestWindow_PushKeepsArrivalOrder(t *testing.T) {
	w := NewWindow(DefaultCapacity)
	for i := uint64(1); i <= 3; i++ {
		w.Push(photoAt(i))
	}
	assert.Equal(t, []uint64{1, 2, 3}, indexes(w.Snapshot()))
	assert.Equal(t, 3, w.Len())
}

func TestWindow_EleventhEvictsOldest(t *testing.T) {
	w := NewWindow(DefaultCapacity)
	for i := uint64(1); i <= 10; i++ {
		w.Push(photoAt(i))
	}
	require.Equal(t, 10, w.Len())

	w.Push(photoAt(11))

	snap := w.Snapshot()
	assert.Len(t, snap, 10)
	assert.Equal(t, uint64(2), snap[0].Index)
	assert.Equal(t, uint64(11), snap[9].Index)
	assert.Equal(t, uint64(1), w.Evicted())
}

func TestWindow_NeverExceedsCapacity(t *testing.T) {
	w := NewWindow(DefaultCapacity)
	for i := uint64(1); i <= 57; i++ {
		w.Push(photoAt(i))
		assert.LessOrEqual(t, w.Len(), DefaultCapacity)
	}
	assert.Equal(t, []uint64{48, 49, 50, 51, 52, 53, 54, 55, 56, 57}, indexes(w.Snapshot()))
	assert.Equal(t, uint64(47), w.Evicted())
}

func TestWindow_SnapshotIsIndependentCopy(t *testing.T) {
	w := NewWindow(3)
	w.Push(photoAt(1))
	snap := w.Snapshot()

	w.Push(photoAt(2))
	w.Push(photoAt(3))
	w.Push(photoAt(4))

	assert.Equal(t, []uint64{1}, indexes(snap))
}

func TestWindow_Since(t *testing.T) {
	w := NewWindow(3)
	for i := uint64(1); i <= 5; i++ {
		w.Push(photoAt(i))
	}

	tests := []struct {
		name  string
		after uint64
		want  []uint64
	}{
		{"everything", 0, []uint64{3, 4, 5}},
		{"evicted cursor", 1, []uint64{3, 4, 5}},
		{"middle", 3, []uint64{4, 5}},
		{"caught up", 5, []uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, indexes(w.Since(tt.after)))
		})
	}
}

func TestWindow_Latest(t *testing.T) {
	w := NewWindow(2)
	_, ok := w.Latest()
	assert.False(t, ok)

	w.Push(photoAt(1))
	w.Push(photoAt(2))
	w.Push(photoAt(3))

	p, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), p.Index)
}

func TestWindow_ConcurrentPushAndSnapshot(t *testing.T) {
	w := NewWindow(DefaultCapacity)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 500; i++ {
			w.Push(photoAt(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := w.Snapshot()
			for j := 1; j < len(snap); j++ {
				if snap[j].Index != snap[j-1].Index+1 {
					t.Errorf("snapshot out of order: %v", indexes(snap))
					return
				}
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, DefaultCapacity, w.Len())
}
