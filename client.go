package rangeserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"github.com/sourcegraph/conc/stream"
)

var (
	ErrInvalidArgument = errors.New(
		"rangeserve: chunk size and workers must be greater than zero",
	)
	ErrRangeUnsupported = errors.New("rangeserve: server does not support range requests")
)

// Client fetches large responses as a number of concurrent range requests.
// Chunks are ChunkSize bytes long and at most Workers chunks are fetched at
// once. If the server does not support range requests, requests fail with
// ErrRangeUnsupported.
type Client struct {
	// HTTP sends the individual requests. Nil means http.DefaultClient.
	HTTP      *http.Client
	ChunkSize uint64
	Workers   uint

	// CacheSlots, when positive, keeps that many fetched chunks in memory
	// and reuses them across requests.
	CacheSlots int

	loaderOnce sync.Once
	loader     Loader
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) isValid() bool {
	return c.ChunkSize > 0 && c.Workers > 0
}

func (c *Client) chunkLoader() Loader {
	c.loaderOnce.Do(func() {
		c.loader = HTTPLoader(c.httpClient())
		if c.CacheSlots > 0 {
			c.loader = WrapLoaderWithSingleFlight(WrapLoaderWithLRUCache(c.loader, c.CacheSlots))
		}
	})
	return c.loader
}

// Stat asks the server for the size of the resource behind r.
// We'd normally do a HEAD request here, but some servers don't support HEAD
// requests, so the first byte is fetched instead.
func (c *Client) Stat(r *http.Request) (uint64, http.Header, error) {
	probeReq := r.Clone(r.Context())
	probeReq.Method = http.MethodGet
	probeReq.Header.Set(headerNameRange, Chunk{Start: 0, Length: 1}.RangeHeader())
	resp, err := c.httpClient().Do(probeReq)
	if err != nil {
		return 0, nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
	case http.StatusOK:
		return 0, nil, ErrRangeUnsupported
	case http.StatusNotFound:
		return 0, nil, fmt.Errorf("%w: %s", ErrResourceNotFound, r.URL)
	default:
		return 0, nil, fmt.Errorf("rangeserve: unexpected status %s", resp.Status)
	}

	cr := resp.Header.Get(headerNameContentRange)
	w, err := ParseContentRange(cr)
	var ue *UnsatisfiableError
	if errors.As(err, &ue) {
		return ue.Size, resp.Header, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("rangeserve: error parsing Content-Range header %s: %w", cr, err)
	}
	return w.Size, resp.Header, nil
}

// Do sends an HTTP request and returns an HTTP response, fetching the body in
// chunks. A Range header on r is honored and answered with a 206 response.
// HTTP HEAD requests are not fetched in chunks.
func (c *Client) Do(r *http.Request) (*http.Response, error) {
	if r == nil {
		return nil, errors.New("rangeserve: request cannot be nil")
	}
	if !c.isValid() {
		return nil, ErrInvalidArgument
	}
	if r.Method == http.MethodHead {
		return c.httpClient().Do(r)
	}

	size, probeHeader, err := c.Stat(r)
	if err != nil {
		return nil, err
	}
	spec, err := ParseRange(r.Header.Get(headerNameRange))
	if err != nil {
		return nil, err
	}
	window, err := Resolve(spec, size)
	if err != nil {
		return nil, err
	}

	header := probeHeader.Clone()
	header.Set(headerNameContentLength, strconv.FormatUint(window.Length(), 10))
	status := http.StatusOK
	if window.Partial {
		status = http.StatusPartialContent
		header.Set(headerNameContentRange, window.ContentRange())
	} else {
		header.Del(headerNameContentRange)
	}

	ctx, cancel := context.WithCancel(r.Context())
	read, write := io.Pipe()
	body := &remoteBody{PipeReader: read, cancel: cancel}
	fetchers := stream.New().WithMaxGoroutines(int(c.Workers))
	go fetchChunks(ctx, cancel, r.Clone(ctx), c.chunkLoader(), Chunks(c.ChunkSize, window), fetchers, write)

	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body,
		ContentLength: int64(window.Length()),
		Request:       r,
	}, nil
}

// Download fetches the whole resource at url into dst, writing chunks in
// parallel as they arrive. listener, if not nil, is told the running total
// after every chunk; calls are serialized. It returns the resource size.
func (c *Client) Download(ctx context.Context, url string, dst io.WriterAt, listener ProgressListener) (uint64, error) {
	if !c.isValid() {
		return 0, ErrInvalidArgument
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	size, _, err := c.Stat(req)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}

	var (
		mu        sync.Mutex
		delivered uint64
	)
	loader := c.chunkLoader()
	p := pool.New().WithMaxGoroutines(int(c.Workers)).WithContext(ctx).WithCancelOnError()
	for _, chunk := range Chunks(c.ChunkSize, Window{End: size - 1, Size: size}) {
		chunk := chunk
		p.Go(func(ctx context.Context) error {
			data, err := loader.Load(req.WithContext(ctx), chunk)
			if err != nil {
				return err
			}
			if _, err := dst.WriteAt(data, int64(chunk.Start)); err != nil {
				return err
			}
			if listener != nil {
				mu.Lock()
				delivered += chunk.Length
				listener.Progress(delivered)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return 0, err
	}
	return size, nil
}

type remoteBody struct {
	*io.PipeReader
	cancel context.CancelFunc
}

// Close stops outstanding chunk fetches.
func (b *remoteBody) Close() error {
	b.cancel()
	return b.PipeReader.Close()
}

// fetchChunks loads chunks concurrently and writes them to w in order.
func fetchChunks(
	ctx context.Context,
	cancel context.CancelFunc,
	req *http.Request,
	loader Loader,
	chunks []Chunk,
	fetchers *stream.Stream,
	w *io.PipeWriter,
) {
	defer func() {
		fetchers.Wait()
		// A canceled fetch must not look like a complete body.
		w.CloseWithError(ctx.Err())
		cancel()
	}()

	for _, chunk := range chunks {
		chunk := chunk
		fetchers.Go(func() stream.Callback {
			if ctx.Err() != nil {
				return func() {}
			}
			data, err := loader.Load(req, chunk)
			return func() {
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					w.CloseWithError(err)
					cancel()
					return
				}
				if _, err := w.Write(data); err != nil {
					cancel()
				}
			}
		})
	}
}

// NewHTTPClient returns a new http.Client whose transport fetches requests in
// chunks through c.
func NewHTTPClient(c *Client) (*http.Client, error) {
	transport, err := NewRoundTripper(c)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport}, nil
}

type roundTripper func(*http.Request) (*http.Response, error)

func (r roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return r(req)
}

// NewRoundTripper returns a new http.RoundTripper that fetches requests in chunks.
// c.HTTP must not use the returned transport.
func NewRoundTripper(c *Client) (http.RoundTripper, error) {
	if c == nil || !c.isValid() {
		return nil, ErrInvalidArgument
	}
	return roundTripper(c.Do), nil
}
