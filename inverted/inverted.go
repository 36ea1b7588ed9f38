// Package inverted stores one compressed document bitmap per tag id
// and evaluates set operations across them. It is the tag-centric view
// of the index, dense over the tag id space. Not safe for concurrent
// use; the index coordinator serializes access.
package inverted

import (
	"bytes"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/taggo/core"
	"github.com/hupe1980/taggo/persistence"
)

// Index holds one roaring bitmap of document ids per tag id. Bitmaps
// for ids that were never written are empty.
type Index struct {
	bitmaps []*roaring.Bitmap
}

// New creates an empty inverted index.
func New() *Index {
	return &Index{}
}

// grow extends the bitmap list with empty defaults so id is addressable.
func (idx *Index) grow(id core.TagID) {
	for uint64(len(idx.bitmaps)) <= uint64(id) {
		idx.bitmaps = append(idx.bitmaps, roaring.New())
	}
}

// Add records the document in the tag's posting set. Adding an already
// present document is a no-op.
func (idx *Index) Add(doc core.DocID, tag core.TagID) {
	idx.grow(tag)
	idx.bitmaps[tag].Add(uint32(doc))
}

// Remove retracts the document from the tag's posting set. Unknown tag
// ids and absent documents are no-ops.
func (idx *Index) Remove(doc core.DocID, tag core.TagID) {
	if uint64(tag) >= uint64(len(idx.bitmaps)) {
		return
	}
	idx.bitmaps[tag].Remove(uint32(doc))
}

// Bitmap returns the posting set for a tag id. Callers must not modify
// the returned bitmap.
func (idx *Index) Bitmap(tag core.TagID) (*roaring.Bitmap, bool) {
	if uint64(tag) >= uint64(len(idx.bitmaps)) {
		return nil, false
	}
	return idx.bitmaps[tag], true
}

// Cardinality returns the posting set size for a tag id. Unknown ids
// yield zero.
func (idx *Index) Cardinality(tag core.TagID) uint64 {
	if uint64(tag) >= uint64(len(idx.bitmaps)) {
		return 0
	}
	return idx.bitmaps[tag].GetCardinality()
}

// Len returns the number of posting sets, which is one past the highest
// tag id ever written.
func (idx *Index) Len() int { return len(idx.bitmaps) }

// Evaluate combines the posting sets of the given tag ids. The result
// is always a fresh bitmap owned by the caller.
//
// Unknown tag ids contribute empty sets: as the first operand they
// empty an AND or ANDNOT result, for OR and XOR they are skipped. An
// empty id list yields an empty result.
func (idx *Index) Evaluate(tags []core.TagID, op Op) *roaring.Bitmap {
	if len(tags) == 0 {
		return roaring.New()
	}

	base, known := idx.Bitmap(tags[0])

	switch op {
	case OpAnd:
		if !known {
			return roaring.New()
		}
		result := base.Clone()
		for _, tag := range tags[1:] {
			next, ok := idx.Bitmap(tag)
			if !ok {
				return roaring.New()
			}
			result.And(next)
			if result.IsEmpty() {
				return result
			}
		}
		return result

	case OpAndNot:
		result := roaring.New()
		if known {
			result.Or(base)
		}
		if len(tags) == 1 || result.IsEmpty() {
			return result
		}
		rest := roaring.New()
		for _, tag := range tags[1:] {
			if next, ok := idx.Bitmap(tag); ok {
				rest.Or(next)
			}
		}
		result.AndNot(rest)
		return result

	case OpOr, OpXor:
		result := roaring.New()
		if known {
			result.Or(base)
		}
		for _, tag := range tags[1:] {
			next, ok := idx.Bitmap(tag)
			if !ok {
				continue
			}
			if op == OpOr {
				result.Or(next)
			} else {
				result.Xor(next)
			}
		}
		return result

	default:
		return roaring.New()
	}
}

// Optimize converts suitable bitmaps to run-length encoding. Called
// after bulk ingestion.
func (idx *Index) Optimize() {
	for _, bm := range idx.bitmaps {
		bm.RunOptimize()
	}
}

// SaveTo writes all posting sets in tag id order: a uint64 bitmap
// count, then per bitmap a uint32 byte size followed by the portable
// roaring serialization.
func (idx *Index) SaveTo(w io.Writer) error {
	bw := persistence.NewWriter(w)

	if err := bw.WriteUint64(uint64(len(idx.bitmaps))); err != nil {
		return fmt.Errorf("write bitmap count: %w", err)
	}
	for tag, bm := range idx.bitmaps {
		data, err := bm.ToBytes()
		if err != nil {
			return fmt.Errorf("serialize bitmap for tag %d: %w", tag, err)
		}
		if err := bw.WriteBytes(data); err != nil {
			return fmt.Errorf("write bitmap for tag %d: %w", tag, err)
		}
	}
	return nil
}

// LoadFrom replaces the index contents with the serialized state. On
// error the receiver is left unchanged.
func (idx *Index) LoadFrom(r io.Reader) error {
	br := persistence.NewReader(r)

	count, err := br.ReadCount()
	if err != nil {
		return fmt.Errorf("read bitmap count: %w", err)
	}
	bitmaps := make([]*roaring.Bitmap, 0, count)
	for i := uint64(0); i < count; i++ {
		data, err := br.ReadBytes()
		if err != nil {
			return fmt.Errorf("read bitmap for tag %d: %w", i, err)
		}
		bm := roaring.New()
		if len(data) > 0 {
			if _, err := bm.ReadFrom(bytes.NewReader(data)); err != nil {
				return fmt.Errorf("deserialize bitmap for tag %d: %w", i, err)
			}
		}
		bitmaps = append(bitmaps, bm)
	}

	idx.bitmaps = bitmaps
	return nil
}
