package snapshot

type options struct {
	codec     string
	sparse    bool
	blockSize int
}

func defaultOptions() options {
	return options{
		codec:     "zstd",
		sparse:    false,
		blockSize: defaultBlockSize,
	}
}

// Option customizes how snapshots are written.
type Option func(*options)

// WithCodec selects the compression codec by name ("none", "lz4",
// "zstd"). The default is "zstd".
func WithCodec(name string) Option {
	return func(o *options) {
		o.codec = name
	}
}

// WithSparse omits all-zero pages from the payload and records the
// occupied pages in a compressed bitmap instead.
func WithSparse(sparse bool) Option {
	return func(o *options) {
		o.sparse = sparse
	}
}

// WithBlockSize overrides the payload block size. Zero keeps the default.
func WithBlockSize(size int) Option {
	return func(o *options) {
		o.blockSize = size
	}
}
