// Package chunk reassembles images from the device's notification stream.
//
// Each notification carries a 2-byte little-endian sequence id followed by a
// slice of the image. Sequence 0 starts a transfer, ids increase by one, and
// the reserved id 0xFFFF ends it. The link has no acknowledgement or
// retransmission, so any ordering violation discards the whole transfer.
package chunk

import (
	"encoding/binary"
	"fmt"
)

// EndMarker is the reserved sequence id that terminates a transfer.
const EndMarker uint16 = 0xFFFF

// HeaderSize is the size of the sequence id prefix.
const HeaderSize = 2

// Record is one decoded notification.
type Record struct {
	// Seq is the chunk index within the transfer. Meaningless when End is set.
	Seq uint16

	// End marks the END record.
	End bool

	// Payload is the image slice carried by this chunk.
	Payload []byte
}

// DecodeRecord parses a raw notification. The payload is copied so the
// caller may reuse b.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < HeaderSize {
		return Record{}, &FramingError{
			Kind: FramingShort,
			Msg:  fmt.Sprintf("notification of %d bytes has no sequence header", len(b)),
		}
	}

	seq := binary.LittleEndian.Uint16(b[:HeaderSize])
	payload := make([]byte, len(b)-HeaderSize)
	copy(payload, b[HeaderSize:])

	if seq == EndMarker {
		return Record{End: true, Payload: payload}, nil
	}
	return Record{Seq: seq, Payload: payload}, nil
}

// Encode returns the wire form of the record.
func (r Record) Encode() []byte {
	out := make([]byte, HeaderSize+len(r.Payload))
	seq := r.Seq
	if r.End {
		seq = EndMarker
	}
	binary.LittleEndian.PutUint16(out[:HeaderSize], seq)
	copy(out[HeaderSize:], r.Payload)
	return out
}

// Split cuts data into the notifications a device would send for one
// transfer: chunks of at most size payload bytes followed by an END record.
// It is the inverse of a clean reassembly and is used by simulators and tests.
func Split(data []byte, size int) [][]byte {
	if size < 1 {
		size = 1
	}
	var out [][]byte
	for seq := 0; len(data) > 0; seq++ {
		n := min(size, len(data))
		out = append(out, Record{Seq: uint16(seq), Payload: data[:n]}.Encode())
		data = data[n:]
	}
	return append(out, Record{End: true}.Encode())
}
