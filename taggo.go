package taggo

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/taggo/blobstore"
	"github.com/hupe1980/taggo/codec"
	"github.com/hupe1980/taggo/core"
	"github.com/hupe1980/taggo/cursor"
	"github.com/hupe1980/taggo/forward"
	"github.com/hupe1980/taggo/ingest"
	"github.com/hupe1980/taggo/intern"
	"github.com/hupe1980/taggo/internal/fs"
	"github.com/hupe1980/taggo/inverted"
	"github.com/hupe1980/taggo/persistence"
	"github.com/hupe1980/taggo/resource"
)

// Index couples the identifier table, the forward index and the
// inverted index and keeps them consistent. Ingestion (ProcessRecord,
// LoadIncremental) runs under the exclusive lock; queries (Query,
// TagsFor, the counts) run under the shared lock and never mutate.
//
// SaveSnapshot and LoadSnapshot are NOT locked against ingestion or
// queries; the caller serializes them.
type Index struct {
	mu sync.RWMutex

	interner *intern.Table
	forward  *forward.Index
	inverted *inverted.Index

	parser      *ingest.Parser
	cursor      cursor.Store
	source      string
	fsys        fs.FileSystem
	store       blobstore.BlobStore
	codec       codec.Codec
	compression persistence.CompressionType

	resources *resource.Controller
	metrics   MetricsCollector
	logger    *Logger
}

// New creates an empty index.
func New(optFns ...Option) *Index {
	opts := applyOptions(optFns)

	c := opts.codec
	if c == nil {
		c = codec.Default
	}

	idx := &Index{
		interner:    intern.NewTable(),
		forward:     forward.New(),
		inverted:    inverted.New(),
		cursor:      opts.cursorStore,
		source:      opts.source,
		fsys:        opts.fsys,
		store:       opts.blobStore,
		codec:       c,
		compression: opts.compression,
		resources:   resource.NewController(opts.resources),
		metrics:     opts.metricsCollector,
		logger:      opts.logger,
	}

	idx.parser = ingest.NewParser(
		ingest.WithDelimiter(opts.delimiter),
		ingest.WithMalformedHandler(func(line string) {
			idx.logger.Warn("skipping malformed record", "line", line)
		}),
	)

	return idx
}

// LoadStats reports what one incremental load pass did.
type LoadStats struct {
	// Records is the number of well-formed records ingested.
	Records int
	// Malformed is the number of skipped lines without a document id.
	Malformed int
	// Dropped is the number of well-formed records discarded, e.g.
	// because the memory budget was exhausted.
	Dropped int
	// Offset is the ingestion cursor after the pass.
	Offset uint64
}

// ProcessRecord ingests one record: the document's tag set becomes
// exactly the given tags. Re-ingesting a known document replaces its
// previous set, including retraction from the posting sets of tags it
// no longer carries. Empty tags are dropped with a warning.
//
// The returned bool is false when the whole record was discarded
// (empty document id, or memory budget exhausted).
func (idx *Index) ProcessRecord(ctx context.Context, doc string, tags []string) (core.DocID, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.processRecord(ctx, doc, tags)
}

// processRecord runs the per-record pipeline. Callers hold the
// exclusive lock.
func (idx *Index) processRecord(ctx context.Context, doc string, tags []string) (core.DocID, bool) {
	if doc == "" {
		idx.logger.WarnContext(ctx, "discarding record without document id")
		return core.InvalidDocID, false
	}

	if !idx.resources.TryAcquireMemory(recordCost(doc, tags)) {
		idx.logger.WarnContext(ctx, "discarding record, memory budget exhausted",
			"document", doc,
			"used", idx.resources.MemoryUsage(),
		)
		return core.InvalidDocID, false
	}

	docID := idx.interner.InternDoc(doc)
	if docID == core.InvalidDocID {
		return core.InvalidDocID, false
	}

	// occurrences feeds the inverted index and keeps order and
	// duplicates; unique is the forward entry.
	occurrences := make([]core.TagID, 0, len(tags))
	unique := make([]core.TagID, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			idx.logger.WarnContext(ctx, "dropping empty tag", "document", doc)
			continue
		}
		tagID := idx.interner.InternTag(tag)
		if tagID == core.InvalidTagID {
			continue
		}
		occurrences = append(occurrences, tagID)
		if !slices.Contains(unique, tagID) {
			unique = append(unique, tagID)
		}
	}

	// Retract the document from tags its previous set carried but the
	// new one does not, so forward and inverted views stay in step.
	for _, prev := range idx.forward.Tags(docID) {
		if !slices.Contains(unique, prev) {
			idx.inverted.Remove(docID, prev)
		}
	}

	idx.forward.Replace(docID, unique)
	for _, tagID := range occurrences {
		idx.inverted.Add(docID, tagID)
	}

	return docID, true
}

const postingCost = 16

// recordCost estimates the bytes a record retains: each name is held in
// a lookup map and an id-ordered slice, each posting costs a few bytes
// in its bitmap.
func recordCost(doc string, tags []string) int64 {
	cost := int64(2*len(doc)) + postingCost
	for _, tag := range tags {
		cost += int64(2*len(tag)) + postingCost
	}
	return cost
}

// LoadIncremental ingests everything the source has appended since the
// persisted cursor and advances the cursor. With no new data it is a
// no-op. When optimize is set, posting sets are compacted after the
// pass.
//
// Per-record faults never fail the load; they are logged, counted and
// skipped. A cursor save failure is a warning only: the ingested state
// is kept, a restart may reprocess the tail (re-ingestion is
// idempotent).
func (idx *Index) LoadIncremental(ctx context.Context, optimize bool) (LoadStats, error) {
	start := time.Now()
	idx.mu.Lock()
	stats, err := idx.loadIncremental(ctx, optimize)
	idx.mu.Unlock()
	duration := time.Since(start)
	err = translateError(err)
	idx.metrics.RecordLoad(stats.Records, stats.Malformed, duration, err)
	idx.logger.LogLoad(ctx, stats, err)
	return stats, err
}

// loadIncremental runs the load pass. Callers hold the exclusive lock.
func (idx *Index) loadIncremental(ctx context.Context, optimize bool) (LoadStats, error) {
	if idx.source == "" {
		return LoadStats{}, ErrNoSource
	}

	offset, err := idx.cursor.Load(ctx)
	if err != nil {
		idx.logger.WarnContext(ctx, "cursor unreadable, restarting from zero", "error", err)
		offset = 0
	}

	info, err := idx.fsys.Stat(idx.source)
	if err != nil {
		return LoadStats{Offset: offset}, fmt.Errorf("stat source %s: %w", idx.source, err)
	}
	if uint64(info.Size()) <= offset {
		return LoadStats{Offset: offset}, nil
	}

	f, err := idx.fsys.OpenFile(idx.source, os.O_RDONLY, 0)
	if err != nil {
		return LoadStats{Offset: offset}, fmt.Errorf("open source %s: %w", idx.source, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return LoadStats{Offset: offset}, fmt.Errorf("seek source %s to %d: %w", idx.source, offset, err)
	}

	dropped := 0
	result, err := idx.parser.ParseStream(resource.NewRateLimitedReader(ctx, f, idx.resources), func(id string, tags []string) {
		if _, ok := idx.processRecord(ctx, id, tags); !ok {
			dropped++
		}
	})
	stats := LoadStats{
		Records:   result.Records,
		Malformed: result.Malformed,
		Dropped:   dropped,
		Offset:    offset + uint64(result.BytesConsumed),
	}
	if err != nil {
		// Records ingested before the failure stay; the cursor is not
		// advanced, so the next pass rereads from the old offset.
		stats.Offset = offset
		return stats, fmt.Errorf("read source %s: %w", idx.source, err)
	}

	if optimize {
		idx.inverted.Optimize()
	}

	if err := idx.cursor.Save(ctx, stats.Offset); err != nil {
		idx.logger.WarnContext(ctx, "cursor save failed, next load may reprocess",
			"offset", stats.Offset,
			"error", err,
		)
	}

	return stats, nil
}

// Query evaluates a set operation over the posting sets of the given
// tags and returns the matching document identifiers, in the order the
// documents were first ingested.
//
// Unknown tags contribute empty sets: under AND any unknown tag empties
// the result, under ANDNOT an unknown first tag does, under OR and XOR
// unknown tags are skipped. An empty tag list yields an empty result.
func (idx *Index) Query(ctx context.Context, tags []string, op inverted.Op) []string {
	start := time.Now()
	idx.mu.RLock()
	results := idx.queryLocked(ctx, tags, op)
	idx.mu.RUnlock()
	duration := time.Since(start)
	idx.metrics.RecordQuery(op.String(), len(results), duration)
	idx.logger.LogQuery(ctx, op.String(), len(tags), len(results))
	return results
}

// queryLocked evaluates the query. Callers hold the shared lock.
func (idx *Index) queryLocked(ctx context.Context, tags []string, op inverted.Op) []string {
	if len(tags) == 0 {
		return nil
	}

	ids := make([]core.TagID, len(tags))
	unknown := 0
	for i, tag := range tags {
		id, ok := idx.interner.FindTag(tag)
		if !ok {
			id = core.InvalidTagID
			unknown++
		}
		ids[i] = id
	}

	// Inputs that are known-empty skip evaluation.
	if op == inverted.OpAnd && unknown > 0 {
		return nil
	}
	if op == inverted.OpAndNot && ids[0] == core.InvalidTagID {
		return nil
	}

	result := idx.inverted.Evaluate(ids, op)

	out := make([]string, 0, result.GetCardinality())
	for _, doc := range result.ToArray() {
		name, ok := idx.interner.ResolveDoc(core.DocID(doc))
		if !ok {
			idx.logger.WarnContext(ctx, "skipping unresolvable result id", "doc_id", doc)
			continue
		}
		out = append(out, name)
	}
	return out
}

// TagsFor returns the document's current tag set in insertion order.
// Unknown documents yield an empty result.
func (idx *Index) TagsFor(ctx context.Context, doc string) []string {
	start := time.Now()
	idx.mu.RLock()
	out := idx.tagsForLocked(ctx, doc)
	idx.mu.RUnlock()
	idx.metrics.RecordTagsFor(time.Since(start))
	idx.logger.LogTagsFor(ctx, doc, len(out))
	return out
}

// tagsForLocked resolves the document's tags. Callers hold the shared
// lock.
func (idx *Index) tagsForLocked(ctx context.Context, doc string) []string {
	docID, ok := idx.interner.FindDoc(doc)
	if !ok {
		return nil
	}

	tagIDs := idx.forward.Tags(docID)
	out := make([]string, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		name, ok := idx.interner.ResolveTag(tagID)
		if !ok {
			idx.logger.WarnContext(ctx, "skipping unresolvable tag id", "tag_id", uint32(tagID))
			continue
		}
		out = append(out, name)
	}
	return out
}

// DocumentCount returns the number of distinct documents ever ingested.
func (idx *Index) DocumentCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.interner.DocCount()
}

// TagCount returns the number of distinct tags ever ingested.
func (idx *Index) TagCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.interner.TagCount()
}

// Cardinality returns the number of documents carrying the tag.
// Unknown tags yield zero.
func (idx *Index) Cardinality(tag string) uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	tagID, ok := idx.interner.FindTag(tag)
	if !ok {
		return 0
	}
	return idx.inverted.Cardinality(tagID)
}

// Stats describes the index for monitoring and the shell's stats
// command.
type Stats struct {
	// Documents is the number of distinct documents.
	Documents int
	// Tags is the number of distinct tags.
	Tags int
	// MemoryBytes is the estimated bytes charged against the memory
	// budget by ingestion.
	MemoryBytes int64
}

// Stats returns index statistics.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		Documents:   idx.interner.DocCount(),
		Tags:        idx.interner.TagCount(),
		MemoryBytes: idx.resources.MemoryUsage(),
	}
}
