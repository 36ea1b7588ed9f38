// Package intern maintains the bidirectional mapping between external
// string identifiers and the dense numeric ids used by the index
// internals. Documents and tags get independent id spaces, both
// assigned sequentially from zero. Ids are never reused.
//
// The table is not safe for concurrent use; the index coordinator
// serializes access.
package intern

import (
	"fmt"
	"io"

	"github.com/hupe1980/taggo/core"
	"github.com/hupe1980/taggo/persistence"
)

// Table maps document and tag names to dense ids and back.
type Table struct {
	docIDs map[string]core.DocID
	docs   []string
	tagIDs map[string]core.TagID
	tags   []string
}

// NewTable creates an empty identifier table.
func NewTable() *Table {
	return &Table{
		docIDs: make(map[string]core.DocID),
		tagIDs: make(map[string]core.TagID),
	}
}

// InternDoc returns the id for the document name, assigning the next
// free id on first sight. The empty name is not internable and yields
// core.InvalidDocID.
func (t *Table) InternDoc(name string) core.DocID {
	if name == "" {
		return core.InvalidDocID
	}
	if id, ok := t.docIDs[name]; ok {
		return id
	}
	if uint64(len(t.docs)) >= uint64(core.InvalidDocID) {
		return core.InvalidDocID
	}
	id := core.DocID(len(t.docs))
	t.docs = append(t.docs, name)
	t.docIDs[name] = id
	return id
}

// InternTag returns the id for the tag name, assigning the next free id
// on first sight. The empty name yields core.InvalidTagID.
func (t *Table) InternTag(name string) core.TagID {
	if name == "" {
		return core.InvalidTagID
	}
	if id, ok := t.tagIDs[name]; ok {
		return id
	}
	if uint64(len(t.tags)) >= uint64(core.InvalidTagID) {
		return core.InvalidTagID
	}
	id := core.TagID(len(t.tags))
	t.tags = append(t.tags, name)
	t.tagIDs[name] = id
	return id
}

// FindDoc looks up a document name without interning it.
func (t *Table) FindDoc(name string) (core.DocID, bool) {
	id, ok := t.docIDs[name]
	return id, ok
}

// FindTag looks up a tag name without interning it.
func (t *Table) FindTag(name string) (core.TagID, bool) {
	id, ok := t.tagIDs[name]
	return id, ok
}

// ResolveDoc returns the document name for an id.
func (t *Table) ResolveDoc(id core.DocID) (string, bool) {
	if uint64(id) >= uint64(len(t.docs)) {
		return "", false
	}
	return t.docs[id], true
}

// ResolveTag returns the tag name for an id.
func (t *Table) ResolveTag(id core.TagID) (string, bool) {
	if uint64(id) >= uint64(len(t.tags)) {
		return "", false
	}
	return t.tags[id], true
}

// DocCount returns the number of interned documents.
func (t *Table) DocCount() int { return len(t.docs) }

// TagCount returns the number of interned tags.
func (t *Table) TagCount() int { return len(t.tags) }

// SaveTo writes both id spaces: document strings in id order, then tag
// strings in id order, each prefixed with a uint64 count.
func (t *Table) SaveTo(w io.Writer) error {
	bw := persistence.NewWriter(w)

	if err := bw.WriteUint64(uint64(len(t.docs))); err != nil {
		return fmt.Errorf("write document count: %w", err)
	}
	for _, name := range t.docs {
		if err := bw.WriteString(name); err != nil {
			return fmt.Errorf("write document name: %w", err)
		}
	}

	if err := bw.WriteUint64(uint64(len(t.tags))); err != nil {
		return fmt.Errorf("write tag count: %w", err)
	}
	for _, name := range t.tags {
		if err := bw.WriteString(name); err != nil {
			return fmt.Errorf("write tag name: %w", err)
		}
	}
	return nil
}

// LoadFrom replaces the table contents with the serialized state. On
// error the receiver is left unchanged.
func (t *Table) LoadFrom(r io.Reader) error {
	br := persistence.NewReader(r)

	docCount, err := br.ReadCount()
	if err != nil {
		return fmt.Errorf("read document count: %w", err)
	}
	docs := make([]string, 0, docCount)
	docIDs := make(map[string]core.DocID, docCount)
	for i := uint64(0); i < docCount; i++ {
		name, err := br.ReadString()
		if err != nil {
			return fmt.Errorf("read document name %d: %w", i, err)
		}
		docIDs[name] = core.DocID(i)
		docs = append(docs, name)
	}

	tagCount, err := br.ReadCount()
	if err != nil {
		return fmt.Errorf("read tag count: %w", err)
	}
	tags := make([]string, 0, tagCount)
	tagIDs := make(map[string]core.TagID, tagCount)
	for i := uint64(0); i < tagCount; i++ {
		name, err := br.ReadString()
		if err != nil {
			return fmt.Errorf("read tag name %d: %w", i, err)
		}
		tagIDs[name] = core.TagID(i)
		tags = append(tags, name)
	}

	t.docs = docs
	t.docIDs = docIDs
	t.tags = tags
	t.tagIDs = tagIDs
	return nil
}
