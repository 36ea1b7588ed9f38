// Package taggo provides an embedded tag index for Go.
//
// Taggo maps documents identified by external strings to sets of string
// tags, ingests (id, tags) records incrementally from an append-only
// source, and answers multi-tag set queries (AND/OR/XOR/ANDNOT) over
// compressed roaring bitmaps.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx := taggo.New(
//	    taggo.WithSource("./records.txt"),
//	    taggo.WithCursorStore(cursor.NewFileStore("./records.status", nil)),
//	)
//
//	stats, _ := idx.LoadIncremental(ctx, true)
//	fmt.Printf("ingested %d records\n", stats.Records)
//
//	docs := idx.Query(ctx, []string{"go", "database"}, inverted.OpAnd)
//	tags := idx.TagsFor(ctx, "readme.md")
//
// # Ingestion
//
// The source is line-oriented: one record per line, document id first,
// then tags, separated by a configurable delimiter (default '|'):
//
//	readme.md|go|database|docs
//	main.go|go
//
// LoadIncremental resumes from a persisted byte cursor, so repeated
// calls only ingest what the source appended since the last pass.
// Re-ingesting a document replaces its tag set.
//
// # Snapshots
//
// The whole index can be saved to and restored from an object store:
//
//	store := blobstore.NewLocalStore("./snapshots")
//	idx := taggo.New(taggo.WithBlobStore(store))
//	_ = idx.LoadSnapshot(ctx) // ErrSnapshotNotFound on first run
//	// ... ingest, query ...
//	_ = idx.SaveSnapshot(ctx)
//
// Cloud stores work the same way:
//
//	client := s3.NewFromConfig(cfg)
//	idx := taggo.New(taggo.WithBlobStore(s3blob.NewStore(client, "my-bucket", "tags/")))
//
// # Concurrency
//
// One reader/writer lock per index: queries run concurrently, ingestion
// is exclusive. Snapshot save/load is not locked; callers serialize it
// against everything else.
//
// # Key Features
//
//   - Roaring-bitmap posting sets with AND/OR/XOR/ANDNOT evaluation
//   - Incremental cursor-based ingestion from append-only sources
//   - Checksummed, optionally compressed (LZ4/ZSTD) binary snapshots
//   - Pluggable snapshot storage (local dir, S3, MinIO, in-memory)
//   - Memory budget and ingestion IO throttling
//   - Structured logging (slog) and pluggable metrics
package taggo
