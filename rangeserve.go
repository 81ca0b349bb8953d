// Package rangeserve implements HTTP byte-range serving.
//
// A Range header is parsed with ParseRange into a Spec, which Resolve turns
// into a concrete Window of a resource once its size is known.
// StreamRange then assembles the response Metadata and returns a Stream that
// reads the window from a seekable handle in chunks of at most MaxChunkSize
// bytes. Only single ranges are served; multi-range requests are rejected.
//
// Handler wires all of this to net/http on top of an Opener such as Dir.
// Client is the other side: it fetches large responses as several
// concurrent range requests.
package rangeserve

import (
	"io"
)

// StreamRange prepares a response for window w of handle.
// The handle is seeked to the start of the window before StreamRange returns,
// so a failed seek is reported here, before any header is written.
// On success the returned Stream owns handle; on error handle is closed.
// listener may be nil.
func StreamRange(handle io.ReadSeekCloser, w Window, contentType string, listener ProgressListener) (Metadata, *Stream, error) {
	s := newStream(handle, w, MaxChunkSize, listener)
	if err := s.seek(); err != nil {
		_ = s.Close()
		return Metadata{}, nil, err
	}
	return NewMetadata(w, contentType, nil), s, nil
}
