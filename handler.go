package rangeserve

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Handler serves resources from an Opener with support for single byte ranges.
//
// Errors found before the response is committed are written with WriteError.
// A read error after the headers have been sent aborts the handler with
// http.ErrAbortHandler, so the client sees a reset connection instead of a
// short body.
type Handler struct {
	Opener Opener

	// Name labels the handler's metrics in StatsForNerds. Defaults to "default".
	Name string

	// Resource maps a request to a resource name. Nil uses the URL path.
	Resource func(r *http.Request) string

	// ContentType overrides the content type reported by the Opener.
	ContentType string

	// Ambient, if set, adds Server and Expires headers to successful responses.
	Ambient *Ambient

	// BytesPerSecond caps the body rate of each response. Zero is unlimited.
	BytesPerSecond int

	// Progress, if set, returns a listener for the response to r.
	Progress func(r *http.Request, w Window) ProgressListener

	Logger *slog.Logger
}

func (h *Handler) name() string {
	if h.Name == "" {
		return "default"
	}
	return h.Name
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(discardHandler{})
	}
	return h.Logger
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	m := getHandlerMetrics(h.name())
	m.requestsActive.Add(1)
	defer m.requestsActive.Add(-1)
	m.requestsTotal.Inc()
	defer m.requestDurationSeconds.UpdateDuration(time.Now())

	log := h.logger().With(
		slog.String("handler", h.name()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rw.Header().Set("Allow", "GET, HEAD")
		http.Error(rw, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	name := r.URL.Path
	if h.Resource != nil {
		name = h.Resource(r)
	}

	spec, err := ParseRange(r.Header.Get(headerNameRange))
	if err != nil {
		h.reject(rw, log, m, err)
		return
	}
	info, err := h.Opener.Stat(ctx, name)
	if err != nil {
		h.reject(rw, log, m, err)
		return
	}
	window, err := Resolve(spec, info.Size)
	if err != nil {
		h.reject(rw, log, m, err)
		return
	}
	handle, err := h.Opener.Open(ctx, name)
	if err != nil {
		h.reject(rw, log, m, err)
		return
	}

	contentType := info.ContentType
	if h.ContentType != "" {
		contentType = h.ContentType
	}
	var listener ProgressListener
	if h.Progress != nil {
		listener = h.Progress(r, window)
	}
	meta, stream, err := StreamRange(handle, window, contentType, listener)
	if err != nil {
		h.reject(rw, log, m, err)
		return
	}
	defer stream.Close()

	if h.Ambient != nil {
		meta.Ambient = h.Ambient.Header()
	}
	meta.Write(rw)
	if window.Partial {
		m.partialResponsesTotal.Inc()
	}
	log = log.With(slog.String("content_range", meta.ContentRange))
	if r.Method == http.MethodHead {
		log.Debug("served head")
		return
	}

	var dst io.Writer = rw
	if h.BytesPerSecond > 0 {
		dst = &throttledWriter{
			ctx:     ctx,
			w:       rw,
			limiter: rate.NewLimiter(rate.Limit(h.BytesPerSecond), max(h.BytesPerSecond, MaxChunkSize)),
		}
	}

	var writeErr error
	for stream.Next(ctx) {
		if _, writeErr = dst.Write(stream.Chunk()); writeErr != nil {
			break
		}
		m.responseChunksTotal.Inc()
	}
	m.responseSizeBytes.Update(float64(stream.Delivered()))
	if err := stream.ListenerErr(); err != nil {
		log.Warn("progress listener failed", slog.Any("err", err))
	}

	switch err := stream.Err(); {
	case writeErr != nil:
		m.streamsAbortedTotal.Inc()
		log.Debug("client stopped reading",
			slog.Uint64("delivered", stream.Delivered()), slog.Any("err", writeErr))
	case err == nil:
		log.Debug("served", slog.Uint64("bytes", stream.Delivered()))
	case Classify(err) == KindCanceled:
		m.streamsAbortedTotal.Inc()
		log.Debug("request canceled", slog.Uint64("delivered", stream.Delivered()))
	default:
		m.streamsAbortedTotal.Inc()
		m.errorsTotal(Classify(err)).Inc()
		log.Error("stream failed after headers were sent",
			slog.Uint64("delivered", stream.Delivered()), slog.Any("err", err))
		panic(http.ErrAbortHandler)
	}
}

func (h *Handler) reject(rw http.ResponseWriter, log *slog.Logger, m *handlerMetrics, err error) {
	kind := Classify(err)
	m.errorsTotal(kind).Inc()
	if StatusCode(err) >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("kind", kind.String()), slog.Any("err", err))
	} else {
		log.Info("request rejected", slog.String("kind", kind.String()), slog.Any("err", err))
	}
	WriteError(rw, err)
}

type throttledWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.limiter.WaitN(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}

// discardHandler drops all records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool { return false }

func (discardHandler) Handle(context.Context, slog.Record) error { return nil }

func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler { return d }

func (d discardHandler) WithGroup(string) slog.Handler { return d }
