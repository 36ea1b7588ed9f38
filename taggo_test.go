package taggo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taggo/core"
	"github.com/hupe1980/taggo/cursor"
	"github.com/hupe1980/taggo/internal/fs"
	"github.com/hupe1980/taggo/inverted"
	"github.com/hupe1980/taggo/resource"
	"github.com/hupe1980/taggo/testutil"
)

// scenarioIndex builds the canonical three-document corpus used across
// the query tests.
func scenarioIndex(t *testing.T, optFns ...Option) *Index {
	t.Helper()
	ctx := context.Background()

	idx := New(optFns...)
	for _, rec := range []struct {
		doc  string
		tags []string
	}{
		{"d1", []string{"t1", "t2"}},
		{"d2", []string{"t2", "t3"}},
		{"d3", []string{"t1"}},
	} {
		_, ok := idx.ProcessRecord(ctx, rec.doc, rec.tags)
		require.True(t, ok)
	}
	return idx
}

func TestIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("ProcessRecordAndTagsFor", func(t *testing.T) {
		idx := New()

		id, ok := idx.ProcessRecord(ctx, "d1", []string{"t1", "t2"})
		require.True(t, ok)
		assert.Equal(t, core.DocID(0), id)

		assert.Equal(t, []string{"t1", "t2"}, idx.TagsFor(ctx, "d1"))
		assert.Empty(t, idx.TagsFor(ctx, "unknown"))
		assert.Equal(t, 1, idx.DocumentCount())
		assert.Equal(t, 2, idx.TagCount())
	})

	t.Run("ReingestIsIdempotent", func(t *testing.T) {
		idx := New()

		first, ok := idx.ProcessRecord(ctx, "d1", []string{"t1", "t2"})
		require.True(t, ok)
		second, ok := idx.ProcessRecord(ctx, "d1", []string{"t1", "t2"})
		require.True(t, ok)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, idx.DocumentCount())
		assert.Equal(t, 2, idx.TagCount())
		assert.Equal(t, []string{"t1", "t2"}, idx.TagsFor(ctx, "d1"))
		assert.Equal(t, uint64(1), idx.Cardinality("t1"))
	})

	t.Run("ReplaceRetractsStaleTags", func(t *testing.T) {
		idx := New()

		_, ok := idx.ProcessRecord(ctx, "d1", []string{"t1", "t2"})
		require.True(t, ok)
		_, ok = idx.ProcessRecord(ctx, "d1", []string{"t2", "t3"})
		require.True(t, ok)

		assert.Equal(t, []string{"t2", "t3"}, idx.TagsFor(ctx, "d1"))
		assert.Empty(t, idx.Query(ctx, []string{"t1"}, inverted.OpOr))
		assert.Equal(t, uint64(0), idx.Cardinality("t1"))
		assert.Equal(t, uint64(1), idx.Cardinality("t3"))
	})

	t.Run("DuplicateTagsDeduplicated", func(t *testing.T) {
		idx := New()

		_, ok := idx.ProcessRecord(ctx, "d1", []string{"t1", "t1", "t2", "t1"})
		require.True(t, ok)

		assert.Equal(t, []string{"t1", "t2"}, idx.TagsFor(ctx, "d1"))
		assert.Equal(t, uint64(1), idx.Cardinality("t1"))
		assert.Equal(t, 2, idx.TagCount())
	})

	t.Run("EmptyDocumentDiscarded", func(t *testing.T) {
		idx := New()

		id, ok := idx.ProcessRecord(ctx, "", []string{"t1"})
		assert.False(t, ok)
		assert.Equal(t, core.InvalidDocID, id)
		assert.Equal(t, 0, idx.DocumentCount())
		assert.Equal(t, 0, idx.TagCount())
	})

	t.Run("EmptyTagDropped", func(t *testing.T) {
		idx := New()

		_, ok := idx.ProcessRecord(ctx, "d1", []string{"t1", "", "t2"})
		require.True(t, ok)

		assert.Equal(t, []string{"t1", "t2"}, idx.TagsFor(ctx, "d1"))
		assert.Equal(t, 2, idx.TagCount())
	})

	t.Run("RecordWithoutTags", func(t *testing.T) {
		idx := New()

		_, ok := idx.ProcessRecord(ctx, "d1", []string{"t1"})
		require.True(t, ok)
		_, ok = idx.ProcessRecord(ctx, "d1", nil)
		require.True(t, ok)

		assert.Empty(t, idx.TagsFor(ctx, "d1"))
		assert.Equal(t, uint64(0), idx.Cardinality("t1"))
		assert.Equal(t, 1, idx.DocumentCount())
	})

	t.Run("MemoryBudgetDropsRecords", func(t *testing.T) {
		idx := New(WithResourceLimits(resource.Config{MemoryLimitBytes: 1}))

		id, ok := idx.ProcessRecord(ctx, "d1", []string{"t1"})
		assert.False(t, ok)
		assert.Equal(t, core.InvalidDocID, id)
		assert.Equal(t, 0, idx.DocumentCount())
		assert.Equal(t, 0, idx.TagCount())
	})

	t.Run("StatsTracksUsage", func(t *testing.T) {
		idx := scenarioIndex(t)

		stats := idx.Stats()
		assert.Equal(t, 3, stats.Documents)
		assert.Equal(t, 3, stats.Tags)
		assert.Positive(t, stats.MemoryBytes)
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	idx := scenarioIndex(t)

	tests := []struct {
		name string
		tags []string
		op   inverted.Op
		want []string
	}{
		{name: "OrSingle", tags: []string{"t1"}, op: inverted.OpOr, want: []string{"d1", "d3"}},
		{name: "And", tags: []string{"t1", "t2"}, op: inverted.OpAnd, want: []string{"d1"}},
		{name: "AndNotSingle", tags: []string{"t2"}, op: inverted.OpAndNot, want: []string{"d1", "d2"}},
		{name: "AndNot", tags: []string{"t2", "t3"}, op: inverted.OpAndNot, want: []string{"d1"}},
		{name: "AndNotReversed", tags: []string{"t3", "t2"}, op: inverted.OpAndNot, want: nil},
		{name: "Xor", tags: []string{"t1", "t3"}, op: inverted.OpXor, want: []string{"d1", "d2", "d3"}},
		{name: "AndUnknownTag", tags: []string{"missing"}, op: inverted.OpAnd, want: nil},
		{name: "AndKnownAndUnknown", tags: []string{"t1", "missing"}, op: inverted.OpAnd, want: nil},
		{name: "OrSkipsUnknown", tags: []string{"t1", "missing"}, op: inverted.OpOr, want: []string{"d1", "d3"}},
		{name: "OrUnknownFirst", tags: []string{"missing", "t1"}, op: inverted.OpOr, want: []string{"d1", "d3"}},
		{name: "XorSkipsUnknown", tags: []string{"missing", "t1", "t3"}, op: inverted.OpXor, want: []string{"d1", "d2", "d3"}},
		{name: "AndNotUnknownBase", tags: []string{"missing", "t1"}, op: inverted.OpAndNot, want: nil},
		{name: "AndNotSkipsUnknownRest", tags: []string{"t2", "missing", "t3"}, op: inverted.OpAndNot, want: []string{"d1"}},
		{name: "NoTags", tags: nil, op: inverted.OpOr, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Query(ctx, tt.tags, tt.op)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// writeSource creates the ingestion source file for load tests.
func writeSource(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "records.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadIncremental(t *testing.T) {
	ctx := context.Background()

	t.Run("IngestsAndAdvancesCursor", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1|t1|t2\nd2|t2|t3\nd3|t1\n")
		status := cursor.NewFileStore(filepath.Join(dir, "records.status"), nil)

		idx := New(WithSource(source), WithCursorStore(status))

		stats, err := idx.LoadIncremental(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Records)
		assert.Equal(t, 0, stats.Malformed)
		assert.Equal(t, uint64(len("d1|t1|t2\nd2|t2|t3\nd3|t1\n")), stats.Offset)

		offset, err := status.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, stats.Offset, offset)

		assert.Equal(t, []string{"d1"}, idx.Query(ctx, []string{"t1", "t2"}, inverted.OpAnd))
	})

	t.Run("SecondLoadIsNoop", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1|t1\n")

		idx := New(WithSource(source))

		first, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		require.Equal(t, 1, first.Records)

		second, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Records)
		assert.Equal(t, first.Offset, second.Offset)
		assert.Equal(t, 1, idx.DocumentCount())
	})

	t.Run("ResumesAfterAppend", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1|t1\n")

		idx := New(WithSource(source))

		_, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)

		f, err := os.OpenFile(source, os.O_APPEND|os.O_WRONLY, 0644)
		require.NoError(t, err)
		_, err = f.WriteString("d2|t1|t2\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		stats, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Records)
		assert.Equal(t, []string{"d1", "d2"}, idx.Query(ctx, []string{"t1"}, inverted.OpOr))
	})

	t.Run("MalformedLinesSkipped", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1|t1\n\n|orphaned|tags\n  \nd2|t2\n")

		idx := New(WithSource(source))

		stats, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Records)
		assert.Equal(t, 1, stats.Malformed)
		assert.Equal(t, 2, idx.DocumentCount())
	})

	t.Run("NoSourceConfigured", func(t *testing.T) {
		idx := New()

		_, err := idx.LoadIncremental(ctx, false)
		assert.ErrorIs(t, err, ErrNoSource)
	})

	t.Run("MissingSourceFails", func(t *testing.T) {
		idx := New(WithSource(filepath.Join(t.TempDir(), "gone.txt")))

		_, err := idx.LoadIncremental(ctx, false)
		assert.Error(t, err)
	})

	t.Run("UnreadableCursorRestartsFromZero", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1|t1\nd2|t2\n")
		statusPath := filepath.Join(dir, "records.status")
		require.NoError(t, os.WriteFile(statusPath, []byte("not a number"), 0644))

		idx := New(WithSource(source), WithCursorStore(cursor.NewFileStore(statusPath, nil)))

		stats, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Records)
		assert.Equal(t, 2, idx.DocumentCount())
	})

	t.Run("CursorSaveFailureIsWarningOnly", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1|t1\n")
		statusPath := filepath.Join(dir, "records.status")

		faulty := fs.NewFaultyFS(nil)
		faulty.AddRule("records.status", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

		idx := New(WithSource(source), WithCursorStore(cursor.NewFileStore(statusPath, faulty)))

		stats, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Records)
		assert.Equal(t, 1, idx.DocumentCount())

		_, err = os.Stat(statusPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("RateLimitedLoad", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1|t1\nd2|t2\n")

		idx := New(
			WithSource(source),
			WithResourceLimits(resource.Config{IOLimitBytesPerSec: 1 << 20}),
		)

		stats, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Records)
	})

	t.Run("CustomDelimiter", func(t *testing.T) {
		dir := t.TempDir()
		source := writeSource(t, dir, "d1;t1;t2\nd2;t1\n")

		idx := New(WithSource(source), WithDelimiter(';'))

		stats, err := idx.LoadIncremental(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Records)
		assert.Equal(t, []string{"d1", "d2"}, idx.Query(ctx, []string{"t1"}, inverted.OpOr))
	})
}

// TestQueryMatchesReference cross-checks the bitmap engine against a
// naive evaluation over a generated corpus.
func TestQueryMatchesReference(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(11)
	records := rng.Records(300, 25, 5, 1.2)

	dir := t.TempDir()
	source := filepath.Join(dir, "records.txt")
	require.NoError(t, os.WriteFile(source, testutil.Lines(records, '|'), 0644))

	idx := New(WithSource(source))
	stats, err := idx.LoadIncremental(ctx, true)
	require.NoError(t, err)
	require.Equal(t, len(records), stats.Records)

	ops := []inverted.Op{inverted.OpAnd, inverted.OpOr, inverted.OpXor, inverted.OpAndNot}
	for range 50 {
		tags := make([]string, 1+rng.Intn(3))
		for i := range tags {
			tags[i] = fmt.Sprintf("tag-%03d", rng.Intn(25))
		}
		op := ops[rng.Intn(len(ops))]

		want := testutil.ExactQuery(records, tags, op)
		got := idx.Query(ctx, tags, op)
		if len(want) == 0 {
			assert.Empty(t, got, "tags=%v op=%s", tags, op)
		} else {
			assert.Equal(t, want, got, "tags=%v op=%s", tags, op)
		}
	}

	for _, rec := range records[:20] {
		assert.Equal(t, testutil.ExactTagsFor(records, rec.Doc), idx.TagsFor(ctx, rec.Doc))
	}
}

func TestMetricsCollected(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	source := writeSource(t, dir, "d1|t1|t2\nd2|t2\n")

	collector := &BasicMetricsCollector{}
	idx := New(WithSource(source), WithMetricsCollector(collector))

	_, err := idx.LoadIncremental(ctx, false)
	require.NoError(t, err)
	idx.Query(ctx, []string{"t1"}, inverted.OpOr)
	idx.Query(ctx, []string{"t2"}, inverted.OpAnd)
	idx.TagsFor(ctx, "d1")

	stats := collector.GetStats()
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Equal(t, int64(0), stats.LoadErrors)
	assert.Equal(t, int64(2), stats.LoadRecords)
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.Equal(t, int64(3), stats.QueryResults)
	assert.Equal(t, int64(1), stats.TagsForCount)
}

// Read paths must never allocate identifiers for strings they have not
// seen; otherwise concurrent queries would mutate shared state.
func TestReadPathsDoNotIntern(t *testing.T) {
	ctx := context.Background()
	idx := scenarioIndex(t)

	idx.Query(ctx, []string{"never-seen", "t1"}, inverted.OpAnd)
	idx.TagsFor(ctx, "never-seen-doc")
	idx.Cardinality("never-seen")

	assert.Equal(t, 3, idx.DocumentCount())
	assert.Equal(t, 3, idx.TagCount())
}

func TestIndexConcurrent(t *testing.T) {
	ctx := context.Background()
	idx := New()

	const (
		writers      = 4
		readers      = 4
		perGoroutine = 200
	)

	var wg sync.WaitGroup

	// Writers ingest disjoint document ranges.
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				doc := fmt.Sprintf("doc-%d-%d", w, i)
				idx.ProcessRecord(ctx, doc, []string{"shared", fmt.Sprintf("tag-%d", i%7)})
			}
		}(w)
	}

	// Readers query and resolve throughout.
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				idx.Query(ctx, []string{"shared", fmt.Sprintf("tag-%d", i%7)}, inverted.OpAnd)
				idx.TagsFor(ctx, fmt.Sprintf("doc-%d-%d", r, i))
				idx.Cardinality("shared")
			}
		}(r)
	}

	wg.Wait()

	assert.Equal(t, writers*perGoroutine, idx.DocumentCount())
	assert.Equal(t, uint64(writers*perGoroutine), idx.Cardinality("shared"))
	assert.Len(t, idx.Query(ctx, []string{"shared"}, inverted.OpOr), writers*perGoroutine)
}
