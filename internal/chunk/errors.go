package chunk

import (
	"errors"
	"fmt"
)

// FramingErrorKind classifies why a notification or transfer was dropped.
type FramingErrorKind int

const (
	// FramingShort is a notification too short to carry a sequence id.
	FramingShort FramingErrorKind = iota
	// FramingNoise is a chunk received while no transfer is active.
	FramingNoise
	// FramingEmptyEnd is an END marker with nothing accumulated.
	FramingEmptyEnd
	// FramingDiscontinuity is a chunk whose sequence id is not the expected one.
	FramingDiscontinuity
	// FramingOversize is a transfer that grew beyond MaxPhotoSize.
	FramingOversize
)

func (k FramingErrorKind) String() string {
	switch k {
	case FramingShort:
		return "short"
	case FramingNoise:
		return "noise"
	case FramingEmptyEnd:
		return "empty_end"
	case FramingDiscontinuity:
		return "discontinuity"
	case FramingOversize:
		return "oversize"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FramingError describes a dropped notification or transfer. Framing errors
// are recovered inside the Reassembler; they are logged and counted but never
// surfaced to the user.
type FramingError struct {
	Kind FramingErrorKind
	Msg  string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing %s: %s", e.Kind, e.Msg)
}

// IsFramingError reports whether err is a FramingError of the given kind.
func IsFramingError(err error, kind FramingErrorKind) bool {
	var fe *FramingError
	return errors.As(err, &fe) && fe.Kind == kind
}
