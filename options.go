package taggo

import (
	"log/slog"

	"github.com/hupe1980/taggo/blobstore"
	"github.com/hupe1980/taggo/codec"
	"github.com/hupe1980/taggo/cursor"
	"github.com/hupe1980/taggo/ingest"
	"github.com/hupe1980/taggo/internal/fs"
	"github.com/hupe1980/taggo/persistence"
	"github.com/hupe1980/taggo/resource"
)

type options struct {
	delimiter        byte
	source           string
	fsys             fs.FileSystem
	cursorStore      cursor.Store
	blobStore        blobstore.BlobStore
	codec            codec.Codec
	compression      persistence.CompressionType
	resources        resource.Config
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Index construction.
type Option func(*options)

// WithSource configures the ingestion source file that LoadIncremental
// reads. Without it, LoadIncremental returns ErrNoSource; ProcessRecord
// still works for callers that feed records themselves.
func WithSource(path string) Option {
	return func(o *options) {
		o.source = path
	}
}

// WithDelimiter sets the field delimiter of the ingestion format.
// The zero byte keeps the default '|'.
func WithDelimiter(d byte) Option {
	return func(o *options) {
		if d != 0 {
			o.delimiter = d
		}
	}
}

// WithCursorStore configures where the ingestion cursor is persisted
// between runs.
//
// Example resuming across restarts:
//
//	idx := taggo.New(
//	    taggo.WithSource("./records.txt"),
//	    taggo.WithCursorStore(cursor.NewFileStore("./records.status", nil)),
//	)
//
// The default is an in-memory store, so every process start re-ingests
// from offset zero.
func WithCursorStore(s cursor.Store) Option {
	return func(o *options) {
		if s != nil {
			o.cursorStore = s
		}
	}
}

// WithBlobStore configures the object store snapshots are saved to and
// loaded from. Without it, SaveSnapshot and LoadSnapshot return
// ErrNoSnapshotStore.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = store
	}
}

// WithCodec configures the codec used for the snapshot manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the compression applied to snapshot
// sections. Sections that do not shrink are stored uncompressed
// regardless.
func WithCompression(c persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceLimits configures memory and IO limits for ingestion and
// snapshot transfers. Zero limits track usage without enforcing.
//
// When the memory limit is exhausted mid-load, further records are
// dropped with a warning instead of failing the load.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithFileSystem configures the file system used to read the ingestion
// source. Pass nil to keep the local file system.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	collector := &taggo.BasicMetricsCollector{}
//	idx := taggo.New(taggo.WithMetricsCollector(collector))
//	// ... use idx ...
//	stats := collector.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := taggo.NewJSONLogger(slog.LevelInfo)
//	idx := taggo.New(taggo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		delimiter:        ingest.DefaultDelimiter,
		fsys:             fs.Default,
		compression:      persistence.CompressionZSTD,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.cursorStore == nil {
		o.cursorStore = cursor.NewMemoryStore()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
