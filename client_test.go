package rangeserve

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/iotest"
	"time"

	"github.com/dsnet/golib/memfile"
	"github.com/stretchr/testify/assert"
)

func makeHTTPServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		http.ServeContent(writer, request, "", time.Now(), bytes.NewReader(content))
	}))
	t.Cleanup(server.Close)
	return server
}

func makeRangeServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(&Handler{Opener: &memOpener{data: content}, Name: "client_test"})
	t.Cleanup(server.Close)
	return server
}

func TestClient_Do(t *testing.T) {
	content := makeData(10 * 1024)

	type expected struct {
		status             int
		body               []byte
		contentRangeHeader string
	}
	testCases := []struct {
		name        string
		rangeHeader string
		client      *Client
		expected    expected
	}{
		{
			name:        "start at 42",
			rangeHeader: "bytes=42-",
			client:      &Client{ChunkSize: 1024, Workers: 100},
			expected: expected{
				status:             http.StatusPartialContent,
				body:               content[42:],
				contentRangeHeader: "bytes 42-10239/10240",
			},
		},
		{
			name:        "small range",
			rangeHeader: "bytes=42-83",
			client:      &Client{ChunkSize: 5, Workers: 10},
			expected: expected{
				status:             http.StatusPartialContent,
				body:               content[42:84],
				contentRangeHeader: "bytes 42-83/10240",
			},
		},
		{
			name:        "suffix",
			rangeHeader: "bytes=-100",
			client:      &Client{ChunkSize: 30, Workers: 2},
			expected: expected{
				status:             http.StatusPartialContent,
				body:               content[10140:],
				contentRangeHeader: "bytes 10140-10239/10240",
			},
		},
		{
			name:     "8 byte chunk",
			client:   &Client{ChunkSize: 8, Workers: 128},
			expected: expected{status: http.StatusOK, body: content},
		},
		{
			name:     "3KiB chunks",
			client:   &Client{ChunkSize: 3 * 1024, Workers: 5},
			expected: expected{status: http.StatusOK, body: content},
		},
		{
			name:     "single worker",
			client:   &Client{ChunkSize: 1024, Workers: 1},
			expected: expected{status: http.StatusOK, body: content},
		},
		{
			name:     "cached",
			client:   &Client{ChunkSize: 1000, Workers: 4, CacheSlots: 3},
			expected: expected{status: http.StatusOK, body: content},
		},
	}

	servers := map[string]*httptest.Server{
		"net/http": makeHTTPServer(t, content),
		"handler":  makeRangeServer(t, content),
	}
	for serverName, server := range servers {
		for _, testCase := range testCases {
			testCase := testCase
			server := server
			t.Run(serverName+"/"+testCase.name, func(t *testing.T) {
				t.Parallel()
				req, err := http.NewRequest(http.MethodGet, server.URL, nil)
				assert.NoError(t, err)
				if testCase.rangeHeader != "" {
					req.Header.Set("Range", testCase.rangeHeader)
				}

				resp, err := testCase.client.Do(req)
				if !assert.NoError(t, err) {
					return
				}
				defer resp.Body.Close()
				assert.Equal(t, testCase.expected.status, resp.StatusCode)
				assert.Equal(t, int64(len(testCase.expected.body)), resp.ContentLength)
				assert.Equal(t, testCase.expected.contentRangeHeader, resp.Header.Get("Content-Range"))
				assert.NoError(t, iotest.TestReader(resp.Body, testCase.expected.body))
			})
		}
	}
}

func TestClient_DoErrors(t *testing.T) {
	content := makeData(1024)
	server := makeRangeServer(t, content)
	noRanges := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(content)
	}))
	defer noRanges.Close()

	testCases := []struct {
		name        string
		url         string
		rangeHeader string
		client      *Client
		err         error
	}{
		{name: "zero chunk", url: server.URL, client: &Client{Workers: 1}, err: ErrInvalidArgument},
		{name: "zero workers", url: server.URL, client: &Client{ChunkSize: 1}, err: ErrInvalidArgument},
		{name: "ranges unsupported", url: noRanges.URL, client: &Client{ChunkSize: 10, Workers: 1}, err: ErrRangeUnsupported},
		{name: "not satisfiable", url: server.URL, rangeHeader: "bytes=2000-", client: &Client{ChunkSize: 10, Workers: 1}, err: ErrRangeNotSatisfiable},
		{name: "multiple ranges", url: server.URL, rangeHeader: "bytes=0-1,5-6", client: &Client{ChunkSize: 10, Workers: 1}, err: ErrMultipleRangesUnsupported},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, testCase.url, nil)
			assert.NoError(t, err)
			if testCase.rangeHeader != "" {
				req.Header.Set("Range", testCase.rangeHeader)
			}
			_, err = testCase.client.Do(req)
			assert.ErrorIs(t, err, testCase.err)
		})
	}

	_, err := (&Client{ChunkSize: 1, Workers: 1}).Do(nil)
	assert.Error(t, err)
}

func TestClient_CloseStopsFetching(t *testing.T) {
	content := makeData(1 << 20)
	server := makeRangeServer(t, content)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	assert.NoError(t, err)
	resp, err := (&Client{ChunkSize: 1024, Workers: 2}).Do(req)
	assert.NoError(t, err)

	head := make([]byte, 10)
	_, err = io.ReadFull(resp.Body, head)
	assert.NoError(t, err)
	assert.Equal(t, content[:10], head)
	assert.NoError(t, resp.Body.Close())

	_, err = resp.Body.Read(head)
	assert.Error(t, err)
}

func TestClient_ContextCanceled(t *testing.T) {
	content := makeData(1 << 20)
	server := makeRangeServer(t, content)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	assert.NoError(t, err)
	resp, err := (&Client{ChunkSize: 1024, Workers: 1}).Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	cancel()
	_, err = io.ReadAll(resp.Body)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Download(t *testing.T) {
	content := makeData(100*1024 + 7)
	server := makeRangeServer(t, content)

	for _, workers := range []uint{1, 3, 16} {
		t.Run(fmt.Sprint(workers), func(t *testing.T) {
			file := memfile.New(nil)
			var seen []uint64
			listener := ProgressFunc(func(delivered uint64) { seen = append(seen, delivered) })
			client := &Client{ChunkSize: 4096, Workers: workers}

			size, err := client.Download(context.Background(), server.URL, file, listener)
			assert.NoError(t, err)
			assert.Equal(t, uint64(len(content)), size)
			assert.Equal(t, content, file.Bytes())
			assert.Len(t, seen, 26)
			assert.Equal(t, size, seen[len(seen)-1])
			for i := 1; i < len(seen); i++ {
				assert.Greater(t, seen[i], seen[i-1])
			}
		})
	}
}

func TestClient_DownloadNotFound(t *testing.T) {
	server := httptest.NewServer(&Handler{Opener: makeDir(t, nil), Name: "client_test"})
	defer server.Close()

	_, err := (&Client{ChunkSize: 10, Workers: 1}).Download(context.Background(), server.URL+"/missing", memfile.New(nil), nil)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestNewHTTPClient(t *testing.T) {
	content := makeData(5000)
	server := makeRangeServer(t, content)

	_, err := NewHTTPClient(&Client{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	hc, err := NewHTTPClient(&Client{ChunkSize: 512, Workers: 4})
	assert.NoError(t, err)
	resp, err := hc.Get(server.URL)
	assert.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, content, body)
}
