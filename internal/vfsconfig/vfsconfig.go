// Package vfsconfig holds the pipeline tunables, exposed as pflag-registered
// flags for cmd/vfsctl and as sensible defaults for library callers that
// construct a Service directly.
package vfsconfig

import (
	"time"

	"github.com/spf13/pflag"
)

// Options bundles every tunable the pipelines accept.
type Options struct {
	// ChunkSize is the fixed chunk size for positional reads/writes in the
	// read and write pipelines. The move/copy byte pipe does not use it; it
	// always uses fs.ChunkSize.
	ChunkSize int
	// CoalesceChunks is how many chunks the write pipeline eagerly pulls
	// from a Readable/ByteStream before falling through to buffered write.
	CoalesceChunks int
	// ResolveConcurrency bounds the stat resolver's per-directory fan-out.
	ResolveConcurrency int
	// BackpressureTick is the deliberate yield between a positional write
	// pipeline pausing a push-stream and resuming it.
	BackpressureTick time.Duration
}

// Default returns the baseline configuration: 64 KiB chunks, coalescing up
// to 3 chunks before falling back to a buffered write.
func Default() Options {
	return Options{
		ChunkSize:          64 * 1024,
		CoalesceChunks:     3,
		ResolveConcurrency: 8,
		BackpressureTick:   time.Millisecond,
	}
}

// RegisterFlags wires Options onto a FlagSet, for cmd/vfsctl.
func (o *Options) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.ChunkSize, "chunk-size", o.ChunkSize, "positional I/O chunk size in bytes")
	fs.IntVar(&o.CoalesceChunks, "coalesce-chunks", o.CoalesceChunks, "chunks to eagerly coalesce before a buffered write")
	fs.IntVar(&o.ResolveConcurrency, "resolve-concurrency", o.ResolveConcurrency, "max concurrent child stats during resolve")
	fs.DurationVar(&o.BackpressureTick, "backpressure-tick", o.BackpressureTick, "yield between positional write backpressure pauses")
}
