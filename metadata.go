package rangeserve

import (
	"net/http"
	"strconv"
	"time"
)

const (
	headerNameAcceptRanges  = "Accept-Ranges"
	headerNameContentLength = "Content-Length"
	headerNameContentRange  = "Content-Range"
	headerNameContentType   = "Content-Type"
	headerNameExpires       = "Expires"
	headerNameRange         = "Range"
	headerNameServer        = "Server"
)

// Metadata is the status line and header set of a range response.
type Metadata struct {
	Status        int
	ContentType   string
	ContentRange  string
	ContentLength uint64
	AcceptRanges  string

	// Ambient holds caller supplied headers such as Server and Expires.
	Ambient http.Header
}

// NewMetadata derives response metadata from a resolved window.
// The status is 206 for windows resolved from a Range header, 200 otherwise.
// Content-Range is set either way.
func NewMetadata(w Window, contentType string, ambient http.Header) Metadata {
	status := http.StatusOK
	if w.Partial {
		status = http.StatusPartialContent
	}
	return Metadata{
		Status:        status,
		ContentType:   contentType,
		ContentRange:  w.ContentRange(),
		ContentLength: w.Length(),
		AcceptRanges:  "bytes",
		Ambient:       ambient,
	}
}

// Header returns the metadata as an http.Header.
func (m Metadata) Header() http.Header {
	h := make(http.Header, len(m.Ambient)+4)
	for k, v := range m.Ambient {
		h[k] = append([]string(nil), v...)
	}
	if m.ContentType != "" {
		h.Set(headerNameContentType, m.ContentType)
	}
	h.Set(headerNameAcceptRanges, m.AcceptRanges)
	h.Set(headerNameContentRange, m.ContentRange)
	h.Set(headerNameContentLength, strconv.FormatUint(m.ContentLength, 10))
	return h
}

// Write sets the headers on rw and writes the status code.
func (m Metadata) Write(rw http.ResponseWriter) {
	dst := rw.Header()
	for k, v := range m.Header() {
		dst[k] = v
	}
	rw.WriteHeader(m.Status)
}

// Clock returns the current time.
type Clock func() time.Time

// Ambient produces the identification and timestamp headers added to every
// response.
type Ambient struct {
	// Server is sent as the Server header when not empty.
	Server string

	// Clock stamps the Expires header. Nil means time.Now.
	Clock Clock

	// TTL is added to the clock reading for Expires.
	TTL time.Duration
}

// Header returns the ambient headers for one response.
func (a Ambient) Header() http.Header {
	clock := a.Clock
	if clock == nil {
		clock = time.Now
	}
	h := make(http.Header, 2)
	h.Set(headerNameExpires, clock().Add(a.TTL).UTC().Format(http.TimeFormat))
	if a.Server != "" {
		h.Set(headerNameServer, a.Server)
	}
	return h
}
