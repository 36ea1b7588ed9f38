package taggo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/taggo/blobstore"
	"github.com/hupe1980/taggo/manifest"
	"github.com/hupe1980/taggo/persistence"
)

var (
	// ErrNoSource is returned by LoadIncremental when no ingestion
	// source was configured.
	ErrNoSource = errors.New("no ingestion source configured")

	// ErrNoSnapshotStore is returned by the snapshot operations when no
	// blob store was configured.
	ErrNoSnapshotStore = errors.New("no snapshot store configured")

	// ErrSnapshotNotFound is returned by LoadSnapshot when the store
	// holds no snapshot.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupted is returned by LoadSnapshot when the stored
	// snapshot does not decode or does not match its manifest.
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")
)

// ErrManifestMismatch indicates a snapshot object disagreeing with its
// manifest entry.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrManifestMismatch struct {
	Object string
	Field  string
	Want   uint64
	Got    uint64
	cause  error
}

func (e *ErrManifestMismatch) Error() string {
	return fmt.Sprintf("snapshot object %s: %s is %d, manifest says %d", e.Object, e.Field, e.Got, e.Want)
}

func (e *ErrManifestMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Missing snapshot unification.
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrSnapshotNotFound, err)
	}

	// Corruption unification: decode failures, checksum mismatches and
	// manifest disagreements all surface as ErrSnapshotCorrupted.
	var uv *manifest.ErrUnsupportedVersion
	if errors.As(err, &uv) {
		return fmt.Errorf("%w: %w", ErrSnapshotCorrupted, err)
	}
	var mm *ErrManifestMismatch
	if errors.As(err, &mm) {
		return fmt.Errorf("%w: %w", ErrSnapshotCorrupted, err)
	}
	var cm *persistence.ChecksumMismatchError
	if errors.As(err, &cm) {
		return fmt.Errorf("%w: %w", ErrSnapshotCorrupted, err)
	}
	for _, sentinel := range []error{
		persistence.ErrInvalidMagic,
		persistence.ErrInvalidVersion,
		persistence.ErrInvalidSection,
		persistence.ErrInvalidCompression,
		persistence.ErrCorrupted,
	} {
		if errors.Is(err, sentinel) {
			return fmt.Errorf("%w: %w", ErrSnapshotCorrupted, err)
		}
	}

	return err
}
