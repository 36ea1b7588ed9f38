package taggo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/taggo/blobstore"
	"github.com/hupe1980/taggo/forward"
	"github.com/hupe1980/taggo/intern"
	"github.com/hupe1980/taggo/inverted"
	"github.com/hupe1980/taggo/manifest"
	"github.com/hupe1980/taggo/persistence"
)

// Snapshot object names within the blob store.
const (
	SnapshotInternObject   = "intern.bin"
	SnapshotForwardObject  = "forward.bin"
	SnapshotInvertedObject = "inverted.bin"
	SnapshotManifestObject = "manifest.json"
)

// SaveSnapshot writes the index state to the configured blob store: one
// section object per component, then the manifest naming them. The
// manifest is written last, so a readable manifest always names
// complete objects.
//
// SaveSnapshot is not locked against ingestion or queries; the caller
// must serialize it with both.
func (idx *Index) SaveSnapshot(ctx context.Context) error {
	start := time.Now()
	m, err := idx.saveSnapshot(ctx)
	err = translateError(err)
	idx.metrics.RecordSnapshotSave(time.Since(start), err)
	var documents, tags uint64
	if m != nil {
		documents, tags = m.Documents, m.Tags
	}
	idx.logger.LogSnapshotSave(ctx, documents, tags, err)
	return err
}

func (idx *Index) saveSnapshot(ctx context.Context) (*manifest.Manifest, error) {
	if idx.store == nil {
		return nil, ErrNoSnapshotStore
	}

	sections := []struct {
		name string
		typ  persistence.SectionType
		save func(io.Writer) error
	}{
		{SnapshotInternObject, persistence.SectionIdentifiers, idx.interner.SaveTo},
		{SnapshotForwardObject, persistence.SectionForward, idx.forward.SaveTo},
		{SnapshotInvertedObject, persistence.SectionInverted, idx.inverted.SaveTo},
	}

	stats := make([]persistence.SectionStat, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sections {
		g.Go(func() error {
			if err := idx.resources.AcquireBackground(gctx); err != nil {
				return err
			}
			defer idx.resources.ReleaseBackground()

			var payload bytes.Buffer
			if err := s.save(&payload); err != nil {
				return fmt.Errorf("serialize %s: %w", s.name, err)
			}
			var object bytes.Buffer
			stat, err := persistence.WriteSection(&object, s.typ, idx.compression, payload.Bytes())
			if err != nil {
				return fmt.Errorf("encode %s: %w", s.name, err)
			}
			if err := idx.store.Put(gctx, s.name, object.Bytes()); err != nil {
				return fmt.Errorf("store %s: %w", s.name, err)
			}
			stats[i] = stat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &manifest.Manifest{
		FormatVersion: manifest.CurrentVersion,
		CreatedAt:     time.Now().UTC(),
		Documents:     uint64(idx.interner.DocCount()),
		Tags:          uint64(idx.interner.TagCount()),
	}
	for i, s := range sections {
		m.Sections = append(m.Sections, manifest.Section{
			Name:        s.name,
			Type:        stats[i].Section,
			RawSize:     stats[i].RawSize,
			StoredSize:  stats[i].StoredSize,
			Checksum:    stats[i].Checksum,
			Compression: stats[i].Compression,
		})
	}

	data, err := m.Encode(idx.codec)
	if err != nil {
		return nil, err
	}
	if err := idx.store.Put(ctx, SnapshotManifestObject, data); err != nil {
		return nil, fmt.Errorf("store %s: %w", SnapshotManifestObject, err)
	}
	return m, nil
}

// LoadSnapshot replaces the index state with the snapshot in the
// configured blob store. The manifest is read first and every section
// is verified against it while loading; on any error the index is left
// unchanged. A store without a snapshot yields ErrSnapshotNotFound.
//
// LoadSnapshot is not locked against ingestion or queries; the caller
// must serialize it with both.
func (idx *Index) LoadSnapshot(ctx context.Context) error {
	start := time.Now()
	m, err := idx.loadSnapshot(ctx)
	err = translateError(err)
	idx.metrics.RecordSnapshotLoad(time.Since(start), err)
	var documents, tags uint64
	if m != nil {
		documents, tags = m.Documents, m.Tags
	}
	idx.logger.LogSnapshotLoad(ctx, documents, tags, err)
	return err
}

func (idx *Index) loadSnapshot(ctx context.Context) (*manifest.Manifest, error) {
	if idx.store == nil {
		return nil, ErrNoSnapshotStore
	}

	raw, err := blobstore.ReadAll(ctx, idx.store, SnapshotManifestObject)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SnapshotManifestObject, err)
	}
	m, err := manifest.Decode(idx.codec, raw)
	if err != nil {
		return nil, err
	}

	table := intern.NewTable()
	fwd := forward.New()
	inv := inverted.New()

	sections := []struct {
		name string
		typ  persistence.SectionType
		load func(io.Reader) error
	}{
		{SnapshotInternObject, persistence.SectionIdentifiers, table.LoadFrom},
		{SnapshotForwardObject, persistence.SectionForward, fwd.LoadFrom},
		{SnapshotInvertedObject, persistence.SectionInverted, inv.LoadFrom},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sections {
		g.Go(func() error {
			if err := idx.resources.AcquireBackground(gctx); err != nil {
				return err
			}
			defer idx.resources.ReleaseBackground()

			want, ok := m.Section(s.name)
			if !ok {
				return fmt.Errorf("%w: manifest lists no %s", ErrSnapshotCorrupted, s.name)
			}
			raw, err := blobstore.ReadAll(gctx, idx.store, s.name)
			if errors.Is(err, blobstore.ErrNotFound) {
				return fmt.Errorf("%w: %s object missing", ErrSnapshotCorrupted, s.name)
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", s.name, err)
			}
			payload, err := persistence.ReadSection(bytes.NewReader(raw), s.typ)
			if err != nil {
				return fmt.Errorf("decode %s: %w", s.name, err)
			}
			if got := uint64(len(payload)); got != want.RawSize {
				return &ErrManifestMismatch{Object: s.name, Field: "raw size", Want: want.RawSize, Got: got}
			}
			r := bytes.NewReader(payload)
			if err := s.load(r); err != nil {
				return fmt.Errorf("load %s: %w", s.name, err)
			}
			if r.Len() > 0 {
				idx.logger.WarnContext(gctx, "ignoring trailing bytes in snapshot object",
					"object", s.name,
					"bytes", r.Len(),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if got := uint64(table.DocCount()); got != m.Documents {
		return nil, &ErrManifestMismatch{Object: SnapshotInternObject, Field: "documents", Want: m.Documents, Got: got}
	}
	if got := uint64(table.TagCount()); got != m.Tags {
		return nil, &ErrManifestMismatch{Object: SnapshotInternObject, Field: "tags", Want: m.Tags, Got: got}
	}

	idx.interner = table
	idx.forward = fwd
	idx.inverted = inv
	return m, nil
}
