package rangeserve

import "fmt"

// MaxChunkSize is the largest buffer a Stream yields at once.
const MaxChunkSize = 16384

// Chunk is a run of Length bytes starting at offset Start.
type Chunk struct {
	Start  uint64
	Length uint64
}

// End returns the offset of the last byte in c.
func (c Chunk) End() uint64 {
	return c.Start + c.Length - 1
}

// RangeHeader returns a Range header value for c.
// A zero length is treated as a single byte range.
func (c Chunk) RangeHeader() string {
	end := c.Start + c.Length
	if c.Length != 0 {
		end--
	}
	return fmt.Sprintf("bytes=%d-%d", c.Start, end)
}

// Chunks divides w into consecutive chunks of chunkSize bytes, counted from
// w.Start. Only the last chunk may be shorter.
func Chunks(chunkSize uint64, w Window) []Chunk {
	if chunkSize == 0 {
		return nil
	}
	chunks := make([]Chunk, 0)
	for i := w.Start; i <= w.End; i += chunkSize {
		chunks = append(chunks, Chunk{
			Start:  i,
			Length: min(chunkSize, w.End-i+1),
		})
		if w.End-i < chunkSize {
			// i+chunkSize would pass End.
			break
		}
	}
	return chunks
}
