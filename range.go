package rangeserve

import (
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
)

// Spec is a single byte range as written in a Range header, before the
// resource size is known.
// The zero Spec means no range was requested.
type Spec struct {
	Start    uint64
	End      uint64
	HasStart bool
	HasEnd   bool
}

// Requested reports whether s came from a Range header.
func (s Spec) Requested() bool {
	return s.HasStart || s.HasEnd
}

// Suffix reports whether s asks for the last End bytes ("bytes=-N").
func (s Spec) Suffix() bool {
	return !s.HasStart && s.HasEnd
}

func (s Spec) String() string {
	switch {
	case !s.Requested():
		return "bytes=*"
	case s.Suffix():
		return fmt.Sprintf("bytes=-%d", s.End)
	case !s.HasEnd:
		return fmt.Sprintf("bytes=%d-", s.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", s.Start, s.End)
}

// ParseRange parses a single-range Range header value as per [RFC 7233].
// An empty value means the header was absent and yields the zero Spec.
// Multi-range values are rejected with ErrMultipleRangesUnsupported.
// No bounds checking happens here, see Resolve.
//
// [RFC 7233]: https://tools.ietf.org/html/rfc7233#section-2.1
func ParseRange(s string) (Spec, error) {
	s = textproto.TrimString(s)
	if s == "" {
		return Spec{}, nil
	}
	const b = "bytes="
	if !strings.HasPrefix(s, b) {
		return Spec{}, fmt.Errorf("%w: missing %q unit in %q", ErrMalformedHeader, b, s)
	}
	ra := s[len(b):]
	if strings.Contains(ra, ",") {
		return Spec{}, ErrMultipleRangesUnsupported
	}
	start, end, ok := strings.Cut(ra, "-")
	if !ok || strings.Contains(end, "-") {
		return Spec{}, fmt.Errorf("%w: %q", ErrMalformedHeader, s)
	}

	var spec Spec
	var err error
	if start != "" {
		if spec.Start, err = parsePos(start); err != nil {
			return Spec{}, fmt.Errorf("%w: first-byte-pos in %q", ErrMalformedHeader, s)
		}
		spec.HasStart = true
	}
	if end != "" {
		if spec.End, err = parsePos(end); err != nil {
			return Spec{}, fmt.Errorf("%w: last-byte-pos in %q", ErrMalformedHeader, s)
		}
		spec.HasEnd = true
	}
	if !spec.Requested() {
		// "bytes=-" names no bytes at all.
		return Spec{}, fmt.Errorf("%w: %q", ErrMalformedHeader, s)
	}
	return spec, nil
}

// parsePos parses a byte position. ParseUint rejects signs, so only digits pass.
func parsePos(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
