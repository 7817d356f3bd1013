package slam

import "github.com/pkg/errors"

// ErrorKind tags the non-fatal conditions the orchestrator can report alongside a frame,
// separately from Go's error interface, so the debug channel can maintain per-kind counters
// even though most of these conditions do not interrupt the pose stream.
type ErrorKind int

const (
	// EmptyFrame: the sweep carried no points. A non-empty sweep is not rejected for having too
	// few points.
	EmptyFrame ErrorKind = iota
	// TimestampRegression: the frame's timestamp did not strictly exceed the previous one.
	TimestampRegression
	// MissingCalibration: no calibration table was supplied or it carried no vertical corrections.
	MissingCalibration
	// DegenerateGeometry: fewer than MinNbrMatchedKeypoints residuals survived matching.
	DegenerateGeometry
	// NumericalFailure: the LM normal equations were singular or produced a non-finite step.
	NumericalFailure
	// MapLoadFormatError: a PCD map file failed to parse during LoadMapsFromPCD.
	MapLoadFormatError
)

func (k ErrorKind) String() string {
	switch k {
	case EmptyFrame:
		return "EmptyFrame"
	case TimestampRegression:
		return "TimestampRegression"
	case MissingCalibration:
		return "MissingCalibration"
	case DegenerateGeometry:
		return "DegenerateGeometry"
	case NumericalFailure:
		return "NumericalFailure"
	case MapLoadFormatError:
		return "MapLoadFormatError"
	default:
		return "Unknown"
	}
}

// Fatal reports whether kind is one of the conditions (MissingCalibration, MapLoadFormatError)
// surfaced to the caller as an error rather than being absorbed as a counted, non-fatal event.
func (k ErrorKind) Fatal() bool {
	return k == MissingCalibration || k == MapLoadFormatError
}

// frameError pairs an ErrorKind with a human-readable cause.
type frameError struct {
	Kind ErrorKind
	err  error
}

func (e *frameError) Error() string {
	return e.Kind.String() + ": " + e.err.Error()
}

func (e *frameError) Unwrap() error { return e.err }

func newFrameError(kind ErrorKind, msg string) *frameError {
	return &frameError{Kind: kind, err: errors.New(msg)}
}

// KindOf extracts the ErrorKind carried by err, if any was attached by this package.
func KindOf(err error) (ErrorKind, bool) {
	var fe *frameError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// ErrConfigContradiction is returned by New when the supplied configuration cannot be satisfied
// at construction, the only fatal condition that is not tied to a specific frame.
var ErrConfigContradiction = errors.New("slam: configuration contradiction")
