package rangeserve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
)

var (
	// ErrResourceNotFound is returned when the requested resource does not exist.
	ErrResourceNotFound = errors.New("rangeserve: resource not found")

	// ErrMalformedHeader is returned by ParseRange on invalid input.
	ErrMalformedHeader = errors.New("rangeserve: malformed range header")

	// ErrMultipleRangesUnsupported is returned by ParseRange for multi-range
	// headers such as "bytes=0-1,5-6". It matches ErrMalformedHeader.
	ErrMultipleRangesUnsupported = fmt.Errorf("%w: multiple ranges not supported", ErrMalformedHeader)

	// ErrRangeNotSatisfiable is matched by every *UnsatisfiableError.
	ErrRangeNotSatisfiable = errors.New("rangeserve: range not satisfiable")

	// ErrIOFailure is matched by every *IOError.
	ErrIOFailure = errors.New("rangeserve: i/o failure")
)

// UnsatisfiableError reports a range that does not overlap a resource of Size bytes.
type UnsatisfiableError struct {
	Spec Spec
	Size uint64
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("rangeserve: range %s not satisfiable for size %d", e.Spec, e.Size)
}

func (e *UnsatisfiableError) Is(target error) bool {
	return target == ErrRangeNotSatisfiable
}

// IOError reports a failed seek, read or close on a resource handle.
type IOError struct {
	Op     string
	Offset uint64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("rangeserve: %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool {
	return target == ErrIOFailure
}

// Kind classifies errors for the HTTP layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindResourceNotFound
	KindMalformedHeader
	KindRangeNotSatisfiable
	KindIOFailure
	KindCanceled
)

var kindNames = [...]string{
	KindUnknown:             "unknown",
	KindResourceNotFound:    "not_found",
	KindMalformedHeader:     "malformed_header",
	KindRangeNotSatisfiable: "not_satisfiable",
	KindIOFailure:           "io_failure",
	KindCanceled:            "canceled",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Classify returns the Kind of err. A nil error is KindUnknown.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrMalformedHeader):
		return KindMalformedHeader
	case errors.Is(err, ErrRangeNotSatisfiable):
		return KindRangeNotSatisfiable
	case errors.Is(err, ErrResourceNotFound), errors.Is(err, fs.ErrNotExist):
		return KindResourceNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrIOFailure):
		return KindIOFailure
	}
	return KindUnknown
}

// StatusCode maps err to the HTTP status a handler should reply with,
// provided no header has been written yet.
func StatusCode(err error) int {
	switch Classify(err) {
	case KindResourceNotFound:
		return http.StatusNotFound
	case KindMalformedHeader:
		return http.StatusBadRequest
	case KindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	}
	return http.StatusInternalServerError
}

// WriteError writes a plain error response for err.
// A 416 carries "Content-Range: bytes */size".
func WriteError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	var ue *UnsatisfiableError
	if errors.As(err, &ue) {
		w.Header().Set(headerNameContentRange, UnsatisfiedContentRange(ue.Size))
	}
	w.Header().Set(headerNameAcceptRanges, "bytes")
	http.Error(w, http.StatusText(code), code)
}
