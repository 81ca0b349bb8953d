package rangeserve

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is an inclusive byte window [Start, End] of a resource of Size bytes.
// Resolve only returns windows with Start <= End < Size.
type Window struct {
	Start uint64
	End   uint64
	Size  uint64

	// Partial is set when the window came from a Range header.
	Partial bool
}

// Resolve turns spec into a concrete window of a resource of the given size.
// Without a Range header the whole resource is selected.
// An *UnsatisfiableError is returned when the resource is empty, the start lies
// past the end of the resource, or the start comes after the end.
func Resolve(spec Spec, size uint64) (Window, error) {
	unsatisfiable := &UnsatisfiableError{Spec: spec, Size: size}
	if size == 0 {
		return Window{}, unsatisfiable
	}
	last := size - 1
	w := Window{Size: size, Partial: spec.Requested()}
	switch {
	case !spec.Requested():
		w.Start, w.End = 0, last
	case spec.Suffix():
		if spec.End >= size {
			w.Start = 0
		} else {
			w.Start = size - spec.End
		}
		w.End = last
	case spec.HasEnd:
		w.Start, w.End = spec.Start, min(spec.End, last)
	default:
		w.Start, w.End = spec.Start, last
	}
	if w.Start >= size || w.Start > w.End {
		return Window{}, unsatisfiable
	}
	return w, nil
}

// Length returns the number of bytes in the window.
func (w Window) Length() uint64 {
	return w.End - w.Start + 1
}

// ContentRange returns the Content-Range header value for the window.
// For more information on the Content-Range header, see the MDN article on
// the [Content-Range header].
//
// [Content-Range header]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Content-Range
func (w Window) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", w.Start, w.End, w.Size)
}

// RangeHeader returns a Range header value selecting exactly this window.
func (w Window) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", w.Start, w.End)
}

// UnsatisfiedContentRange returns the Content-Range value sent with a 416.
func UnsatisfiedContentRange(size uint64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseContentRange parses a Content-Range header string as per [RFC 7233].
// It returns the window the response carries; Partial is always set.
// A "bytes */size" value yields an *UnsatisfiableError with that size.
//
// [RFC 7233]: https://tools.ietf.org/html/rfc7233#section-4.2
func ParseContentRange(s string) (Window, error) {
	const bs = "bytes "
	if !strings.HasPrefix(s, bs) {
		return Window{}, fmt.Errorf("%w: content range %q", ErrMalformedHeader, s)
	}
	b, a, ok := strings.Cut(s[len(bs):], "/")
	if !ok {
		return Window{}, fmt.Errorf("%w: content range %q", ErrMalformedHeader, s)
	}
	size, err := strconv.ParseUint(a, 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("%w: content range size %q", ErrMalformedHeader, s)
	}
	if b == "*" {
		return Window{}, &UnsatisfiableError{Size: size}
	}
	b, a, ok = strings.Cut(b, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: content range %q", ErrMalformedHeader, s)
	}
	start, err := strconv.ParseUint(b, 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("%w: content range start %q", ErrMalformedHeader, s)
	}
	end, err := strconv.ParseUint(a, 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("%w: content range end %q", ErrMalformedHeader, s)
	}
	if start > end || end >= size {
		return Window{}, fmt.Errorf("%w: content range %q", ErrMalformedHeader, s)
	}
	return Window{Start: start, End: end, Size: size, Partial: true}, nil
}
