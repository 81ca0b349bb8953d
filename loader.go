package rangeserve

import (
	"fmt"
	"io"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Loader fetches one chunk of the resource named by r.
//
// Load should be safe to call from multiple goroutines.
//
// If err is nil, the returned byte slice must always have exactly c.Length bytes.
// Callers must not modify the returned slice; wrapped loaders may share it.
type Loader interface {
	Load(r *http.Request, c Chunk) ([]byte, error)
}

// LoaderFunc converts a Load function into a Loader type.
type LoaderFunc func(r *http.Request, c Chunk) ([]byte, error)

func (l LoaderFunc) Load(r *http.Request, c Chunk) ([]byte, error) {
	return l(r, c)
}

// HTTPLoader returns a Loader that fetches chunks with range requests sent
// through client. The request's method, URL and headers are reused.
func HTTPLoader(client *http.Client) Loader {
	return LoaderFunc(func(r *http.Request, c Chunk) ([]byte, error) {
		req := r.Clone(r.Context())
		req.Method = http.MethodGet
		req.Header.Set(headerNameRange, c.RangeHeader())
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusPartialContent {
			return nil, fmt.Errorf("%w fetching range %s, got status %s",
				ErrRangeUnsupported, c.RangeHeader(), resp.Status)
		}
		got, err := ParseContentRange(resp.Header.Get(headerNameContentRange))
		if err != nil {
			return nil, fmt.Errorf("rangeserve: range %s: %w", c.RangeHeader(), err)
		}
		if got.Start != c.Start || got.End != c.End() {
			return nil, fmt.Errorf("rangeserve: asked for %s, server sent %s",
				c.RangeHeader(), got.ContentRange())
		}
		data := make([]byte, c.Length)
		if _, err := io.ReadFull(resp.Body, data); err != nil {
			return nil, fmt.Errorf("rangeserve: reading range %s: %w", c.RangeHeader(), err)
		}
		return data, nil
	})
}

func loaderKey(r *http.Request, c Chunk) string {
	return r.URL.String() + " " + c.RangeHeader()
}

// WrapLoaderWithSingleFlight wraps a Loader to ensure that only one call at a time
// for a given URL and chunk is made to the wrapped loader. Concurrent callers
// asking for the same chunk share the result.
func WrapLoaderWithSingleFlight(loader Loader) Loader {
	group := new(singleflight.Group)
	return LoaderFunc(func(r *http.Request, c Chunk) ([]byte, error) {
		data, err, _ := group.Do(loaderKey(r, c), func() (interface{}, error) {
			return loader.Load(r, c)
		})
		if err != nil {
			return nil, err
		}
		return data.([]byte), nil
	})
}

// WrapLoaderWithLRUCache wraps a loader to cache the results returned by the
// inner loader in an LRU cache with the given slot count. For best results,
// wrap the returned Loader with WrapLoaderWithSingleFlight so multiple calls
// are not made while the cache is being filled.
//
// If the given slots count is less than one, one is used.
func WrapLoaderWithLRUCache(loader Loader, slots int) Loader {
	cache, _ := lru.New[string, []byte](max(slots, 1))
	return LoaderFunc(func(r *http.Request, c Chunk) ([]byte, error) {
		key := loaderKey(r, c)
		if data, found := cache.Get(key); found {
			return data, nil
		}
		data, err := loader.Load(r, c)
		if err != nil {
			return nil, err
		}
		cache.Add(key, data)
		return data, nil
	})
}
