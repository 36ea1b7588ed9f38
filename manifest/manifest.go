// Package manifest describes the contents of an index snapshot: which
// objects belong to it, their sizes and checksums, and the counts the
// loaded index must reproduce. The manifest is written after all
// section objects so a readable manifest always names complete data.
package manifest

import (
	"fmt"
	"time"

	"github.com/hupe1980/taggo/codec"
	"github.com/hupe1980/taggo/persistence"
)

// CurrentVersion is the manifest format version written by this release.
const CurrentVersion = 1

// ErrUnsupportedVersion indicates a manifest written by an incompatible
// release.
type ErrUnsupportedVersion struct {
	Version int
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported snapshot manifest version: %d (expected %d)", e.Version, CurrentVersion)
}

// Manifest is the snapshot table of contents.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	CreatedAt     time.Time `json:"created_at"`
	Documents     uint64    `json:"documents"`
	Tags          uint64    `json:"tags"`
	Sections      []Section `json:"sections"`
}

// Section records one snapshot object.
type Section struct {
	Name        string                      `json:"name"`
	Type        persistence.SectionType     `json:"type"`
	RawSize     uint64                      `json:"raw_size"`
	StoredSize  uint64                      `json:"stored_size"`
	Checksum    uint32                      `json:"checksum"`
	Compression persistence.CompressionType `json:"compression"`
}

// Section returns the entry for an object name.
func (m *Manifest) Section(name string) (Section, bool) {
	for _, s := range m.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Encode serializes the manifest. A nil codec uses codec.Default.
func (m *Manifest) Encode(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	data, err := c.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Decode deserializes a manifest and validates its format version. A
// nil codec uses codec.Default.
func Decode(c codec.Codec, data []byte) (*Manifest, error) {
	if c == nil {
		c = codec.Default
	}
	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.FormatVersion != CurrentVersion {
		return nil, &ErrUnsupportedVersion{Version: m.FormatVersion}
	}
	return &m, nil
}
