package rangeserve

// ProgressListener is told the cumulative number of bytes delivered after
// every chunk of a stream.
type ProgressListener interface {
	Progress(delivered uint64)
}

// ProgressFunc converts a function into a ProgressListener.
type ProgressFunc func(delivered uint64)

func (f ProgressFunc) Progress(delivered uint64) {
	f(delivered)
}
