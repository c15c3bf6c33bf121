package chunk

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/snapask/internal/photo"
)

func data(seq uint16, payload string) Record {
	return Record{Seq: seq, Payload: []byte(payload)}
}

var end = Record{End: true}

// feed runs records through r and returns every emitted photo.
func feed(r *Reassembler, recs ...Record) []photo.Photo {
	var out []photo.Photo
	for _, rec := range recs {
		if p, ok := r.OnChunk(rec); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    Record
		wantErr bool
	}{
		{"start", []byte{0x00, 0x00, 0xAA, 0xBB}, Record{Seq: 0, Payload: []byte{0xAA, 0xBB}}, false},
		{"little endian", []byte{0x02, 0x01, 0xCC}, Record{Seq: 0x0102, Payload: []byte{0xCC}}, false},
		{"end marker", []byte{0xFF, 0xFF}, Record{End: true, Payload: []byte{}}, false},
		{"header only", []byte{0x05, 0x00}, Record{Seq: 5, Payload: []byte{}}, false},
		{"one byte", []byte{0x01}, Record{}, true},
		{"empty", nil, Record{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsFramingError(err, FramingShort))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRecord_CopiesPayload(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x01, 0x02}
	rec, err := DecodeRecord(raw)
	require.NoError(t, err)

	raw[2] = 0xFF
	assert.Equal(t, []byte{0x01, 0x02}, rec.Payload)
}

func TestSplit_RoundTrip(t *testing.T) {
	img := bytes.Repeat([]byte("jpeg"), 100)
	r := NewReassembler()

	var got []photo.Photo
	for _, n := range Split(img, 37) {
		if p, ok := r.OnNotification(n); ok {
			got = append(got, p)
		}
	}

	require.Len(t, got, 1)
	assert.Equal(t, img, got[0].Data)
}

func TestReassembler_ValidTransfer(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewReassembler(WithClock(func() time.Time { return at }))

	got := feed(r, data(0, "ab"), data(1, "cd"), data(2, "ef"), end)

	require.Len(t, got, 1)
	assert.Equal(t, []byte("abcdef"), got[0].Data)
	assert.Equal(t, uint64(1), got[0].Index)
	assert.Equal(t, at, got[0].ReceivedAt)
	assert.False(t, r.Receiving())

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Completed)
	assert.Equal(t, uint64(6), stats.Bytes)
}

func TestReassembler_ArrivalIndexIncreases(t *testing.T) {
	r := NewReassembler()
	got := feed(r,
		data(0, "a"), end,
		data(0, "b"), data(1, "c"), end,
		data(0, "d"), end,
	)

	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, uint64(i+1), p.Index)
	}
}

func TestReassembler_Discontinuity(t *testing.T) {
	r := NewReassembler()

	got := feed(r, data(0, "a"), data(1, "b"), data(3, "d"), end)

	assert.Empty(t, got)
	assert.False(t, r.Receiving())
	assert.Equal(t, uint64(1), r.Stats().Discarded)

	// Ready for a new START.
	got = feed(r, data(0, "x"), data(1, "y"), end)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("xy"), got[0].Data)
}

func TestReassembler_MismatchedChunkIsNotReplayedAsStart(t *testing.T) {
	r := NewReassembler()

	// Chunk 5 breaks the transfer; the chunks that follow are noise until
	// the next explicit START.
	got := feed(r, data(0, "a"), data(5, "f"), data(6, "g"), end)

	assert.Empty(t, got)
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Discarded)
	assert.Equal(t, uint64(2), stats.Noise)
}

func TestReassembler_RepeatedChunkIsDiscontinuity(t *testing.T) {
	r := NewReassembler()
	got := feed(r, data(0, "a"), data(1, "b"), data(1, "b"), data(2, "c"), end)
	assert.Empty(t, got)
}

func TestReassembler_EndWhileIdle(t *testing.T) {
	r := NewReassembler()
	got := feed(r, end, end)

	assert.Empty(t, got)
	assert.Equal(t, uint64(2), r.Stats().Noise)
}

func TestReassembler_EndWithEmptyBuffer(t *testing.T) {
	r := NewReassembler()
	got := feed(r, data(0, ""), end)

	assert.Empty(t, got)
	assert.False(t, r.Receiving())
	assert.Equal(t, uint64(1), r.Stats().Discarded)
}

func TestReassembler_DataWhileIdleIsNoise(t *testing.T) {
	r := NewReassembler()
	got := feed(r, data(1, "b"), data(2, "c"), data(0, "a"), end)

	require.Len(t, got, 1)
	assert.Equal(t, []byte("a"), got[0].Data)
	assert.Equal(t, uint64(2), r.Stats().Noise)
}

func TestReassembler_InterleavedStartRestartsTransfer(t *testing.T) {
	r := NewReassembler()
	got := feed(r,
		data(0, "old0"), data(1, "old1"),
		data(0, "new0"), data(1, "new1"), end,
	)

	require.Len(t, got, 1)
	assert.Equal(t, []byte("new0new1"), got[0].Data)
	assert.Equal(t, uint64(1), r.Stats().Discarded)
}

func TestReassembler_Oversize(t *testing.T) {
	r := NewReassembler(WithMaxPhotoSize(4))
	got := feed(r, data(0, "abc"), data(1, "de"), end)

	assert.Empty(t, got)
	assert.Equal(t, uint64(1), r.Stats().Discarded)
}

func TestReassembler_PhotoDataNotReused(t *testing.T) {
	r := NewReassembler()
	first := feed(r, data(0, "first"), end)
	second := feed(r, data(0, "second"), end)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, []byte("first"), first[0].Data)
	assert.Equal(t, []byte("second"), second[0].Data)
}

func TestReassembler_ShortNotificationDropped(t *testing.T) {
	r := NewReassembler()
	_, ok := r.OnNotification([]byte{0x01})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), r.Stats().Noise)
}

func TestReassembler_LogsDrops(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewReassembler(WithLogger(zap.New(core)))

	feed(r, end, data(0, "a"), data(2, "c"))

	entries := logs.FilterMessage("dropping chunk").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "reassembler", entries[0].ContextMap()["component"])
	assert.Contains(t, entries[1].ContextMap()["error"], "discontinuity")
}
