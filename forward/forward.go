// Package forward stores the tag id list for every document id. It is
// the document-centric view of the index, dense over the document id
// space. Not safe for concurrent use; the index coordinator serializes
// access.
package forward

import (
	"fmt"
	"io"

	"github.com/hupe1980/taggo/core"
	"github.com/hupe1980/taggo/persistence"
)

// Index holds one tag id list per document id. Entries for ids that
// were never written are empty lists.
type Index struct {
	entries [][]core.TagID
}

// New creates an empty forward index.
func New() *Index {
	return &Index{}
}

// grow extends the entry list with empty defaults so id is addressable.
func (idx *Index) grow(id core.DocID) {
	for uint64(len(idx.entries)) <= uint64(id) {
		idx.entries = append(idx.entries, nil)
	}
}

// Replace sets the document's tag list, discarding any previous list.
// The index grows as needed to cover the document id.
func (idx *Index) Replace(doc core.DocID, tags []core.TagID) {
	idx.grow(doc)
	entry := make([]core.TagID, len(tags))
	copy(entry, tags)
	idx.entries[doc] = entry
}

// Append extends the document's tag list in place.
func (idx *Index) Append(doc core.DocID, tags []core.TagID) {
	idx.grow(doc)
	idx.entries[doc] = append(idx.entries[doc], tags...)
}

// Tags returns the document's tag list in insertion order. Unknown ids
// yield an empty list. Callers must not modify the returned slice.
func (idx *Index) Tags(doc core.DocID) []core.TagID {
	if uint64(doc) >= uint64(len(idx.entries)) {
		return nil
	}
	return idx.entries[doc]
}

// Len returns the number of entries, which is one past the highest
// document id ever written.
func (idx *Index) Len() int { return len(idx.entries) }

// SaveTo writes all entries in document id order: a uint64 entry count,
// then per entry a uint64 tag count followed by the tag ids.
func (idx *Index) SaveTo(w io.Writer) error {
	bw := persistence.NewWriter(w)

	if err := bw.WriteUint64(uint64(len(idx.entries))); err != nil {
		return fmt.Errorf("write entry count: %w", err)
	}
	raw := make([]uint32, 0, 64)
	for doc, tags := range idx.entries {
		if err := bw.WriteUint64(uint64(len(tags))); err != nil {
			return fmt.Errorf("write tag count for document %d: %w", doc, err)
		}
		raw = raw[:0]
		for _, tag := range tags {
			raw = append(raw, uint32(tag))
		}
		if err := bw.WriteUint32Slice(raw); err != nil {
			return fmt.Errorf("write tags for document %d: %w", doc, err)
		}
	}
	return nil
}

// LoadFrom replaces the index contents with the serialized state. On
// error the receiver is left unchanged.
func (idx *Index) LoadFrom(r io.Reader) error {
	br := persistence.NewReader(r)

	entryCount, err := br.ReadCount()
	if err != nil {
		return fmt.Errorf("read entry count: %w", err)
	}
	entries := make([][]core.TagID, 0, entryCount)
	for i := uint64(0); i < entryCount; i++ {
		tagCount, err := br.ReadCount()
		if err != nil {
			return fmt.Errorf("read tag count for document %d: %w", i, err)
		}
		var tags []core.TagID
		if tagCount > 0 {
			raw, err := br.ReadUint32Slice(int(tagCount))
			if err != nil {
				return fmt.Errorf("read tags for document %d: %w", i, err)
			}
			tags = make([]core.TagID, len(raw))
			for j, v := range raw {
				tags[j] = core.TagID(v)
			}
		}
		entries = append(entries, tags)
	}

	idx.entries = entries
	return nil
}
