package rangeserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
)

// Stream yields the bytes of a Window as a finite sequence of chunks read from
// a resource handle. The Stream owns the handle and closes it once the window
// is delivered, a read fails, the context passed to Next is done, or Close is
// called. A Stream cannot be restarted.
//
// Use it like a bufio.Scanner:
//
//	defer s.Close()
//	for s.Next(ctx) {
//		w.Write(s.Chunk())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	handle   io.ReadSeekCloser
	window   Window
	listener ProgressListener

	buf       []byte
	chunk     []byte
	delivered uint64
	done      bool
	err       error

	listenerErr error

	closeOnce sync.Once
	closeErr  error
}

func newStream(handle io.ReadSeekCloser, w Window, chunkSize int, listener ProgressListener) *Stream {
	return &Stream{
		handle:   handle,
		window:   w,
		listener: listener,
		buf:      make([]byte, min(uint64(chunkSize), w.Length())),
	}
}

// seek positions the handle at the start of the window. It is called once,
// before the first read.
func (s *Stream) seek() error {
	if s.window.Start > math.MaxInt64 {
		return &IOError{Op: "seek", Offset: s.window.Start, Err: errors.New("offset overflows int64")}
	}
	if _, err := s.handle.Seek(int64(s.window.Start), io.SeekStart); err != nil {
		return &IOError{Op: "seek", Offset: s.window.Start, Err: err}
	}
	return nil
}

// Next reads the next chunk. It returns false when the window has been
// delivered or the stream failed; Err tells the two apart.
// If ctx is done while a read is blocked, the handle is closed to unblock it.
func (s *Stream) Next(ctx context.Context) bool {
	s.chunk = nil
	if s.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.fail(err)
		return false
	}

	n := min(uint64(len(s.buf)), s.window.Length()-s.delivered)
	stop := context.AfterFunc(ctx, func() { _ = s.release() })
	_, err := io.ReadFull(s.handle, s.buf[:n])
	if !stop() {
		s.fail(ctx.Err())
		return false
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			// The resource is shorter than the size it was resolved against.
			err = io.ErrUnexpectedEOF
		}
		s.fail(&IOError{Op: "read", Offset: s.window.Start + s.delivered, Err: err})
		return false
	}

	s.delivered += n
	s.chunk = s.buf[:n]
	s.notify()
	if s.delivered == s.window.Length() {
		s.done = true
		_ = s.release()
	}
	return true
}

// Chunk returns the bytes read by the last call to Next.
// The slice is only valid until the next call to Next.
func (s *Stream) Chunk() []byte {
	return s.chunk
}

// Err returns the error that ended the stream, if any. It is an *IOError for
// failed reads and the context error for cancellation.
func (s *Stream) Err() error {
	return s.err
}

// Delivered returns the number of bytes yielded so far.
func (s *Stream) Delivered() uint64 {
	return s.delivered
}

// Window returns the window being streamed.
func (s *Stream) Window() Window {
	return s.window
}

// ListenerErr returns the panic recovered from the progress listener. The
// listener is not called again after it panics.
func (s *Stream) ListenerErr() error {
	return s.listenerErr
}

// Close stops the stream and releases the handle. It is safe to call more
// than once and after the stream has finished; it returns the handle's Close error.
func (s *Stream) Close() error {
	s.done = true
	s.chunk = nil
	return s.release()
}

// Copy writes the rest of the stream to w, one chunk at a time.
// A failed write closes the stream.
func (s *Stream) Copy(ctx context.Context, w io.Writer) (int64, error) {
	var written int64
	for s.Next(ctx) {
		n, err := w.Write(s.Chunk())
		written += int64(n)
		if err != nil {
			_ = s.Close()
			return written, err
		}
	}
	return written, s.Err()
}

func (s *Stream) fail(err error) {
	s.err = err
	s.done = true
	_ = s.release()
}

func (s *Stream) release() error {
	s.closeOnce.Do(func() {
		if err := s.handle.Close(); err != nil {
			s.closeErr = &IOError{Op: "close", Offset: s.window.Start + s.delivered, Err: err}
		}
	})
	return s.closeErr
}

// notify isolates the stream from a panicking listener.
func (s *Stream) notify() {
	if s.listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.listener = nil
			s.listenerErr = fmt.Errorf("rangeserve: progress listener panicked: %v", r)
		}
	}()
	s.listener.Progress(s.delivered)
}
