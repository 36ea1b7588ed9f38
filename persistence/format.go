package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MagicNumber identifies taggo binary sections (ASCII: "TAG1")
	MagicNumber = 0x54414731
	// Version is the current section format version (v1.0.0)
	Version = 0x00010000

	// maxSectionSize caps the stored payload size accepted on read.
	// Guards against allocating huge buffers from corrupt headers.
	maxSectionSize = 1 << 31
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported version")
	ErrInvalidSection     = errors.New("invalid section type")
	ErrInvalidCompression = errors.New("unknown compression type")
	ErrCorrupted          = errors.New("corrupted section")
)

// SectionType identifies which index component a section holds.
type SectionType uint8

const (
	// SectionIdentifiers holds the interned document and tag strings.
	SectionIdentifiers SectionType = 1
	// SectionForward holds per-document tag id lists.
	SectionForward SectionType = 2
	// SectionInverted holds per-tag document bitmaps.
	SectionInverted SectionType = 3
)

func (s SectionType) String() string {
	switch s {
	case SectionIdentifiers:
		return "identifiers"
	case SectionForward:
		return "forward"
	case SectionInverted:
		return "inverted"
	default:
		return fmt.Sprintf("section(%d)", uint8(s))
	}
}

// SectionHeader is the 32-byte header at the start of every section.
type SectionHeader struct {
	Magic       uint32 // 0x54414731 ("TAG1")
	Version     uint32 // Section format version
	Section     uint8  // 1=identifiers, 2=forward, 3=inverted
	Compression uint8  // CompressionType of the stored payload
	Reserved    [2]byte
	RawSize     uint64 // Payload size before compression
	StoredSize  uint64 // Payload size as stored
	Checksum    uint32 // CRC32 (IEEE) of the stored payload bytes
}

// SectionStat describes a written section, for manifest bookkeeping.
type SectionStat struct {
	Section     SectionType
	Compression CompressionType
	RawSize     uint64
	StoredSize  uint64
	Checksum    uint32
}

// TotalSize returns the section size on disk including the header.
func (s SectionStat) TotalSize() uint64 {
	return uint64(binary.Size(SectionHeader{})) + s.StoredSize
}

// WriteSection writes one framed section: header, then the (possibly
// compressed) payload. If compression does not pay off for the payload
// the section is stored uncompressed and the header says so.
func WriteSection(w io.Writer, section SectionType, compression CompressionType, payload []byte) (SectionStat, error) {
	stored, actual, err := compressPayload(payload, compression)
	if err != nil {
		return SectionStat{}, fmt.Errorf("compress %s section: %w", section, err)
	}

	header := SectionHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Section:     uint8(section),
		Compression: uint8(actual),
		RawSize:     uint64(len(payload)),
		StoredSize:  uint64(len(stored)),
		Checksum:    CalculateChecksum(stored),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return SectionStat{}, fmt.Errorf("write %s section header: %w", section, err)
	}
	if _, err := w.Write(stored); err != nil {
		return SectionStat{}, fmt.Errorf("write %s section payload: %w", section, err)
	}

	return SectionStat{
		Section:     section,
		Compression: actual,
		RawSize:     header.RawSize,
		StoredSize:  header.StoredSize,
		Checksum:    header.Checksum,
	}, nil
}

// ReadSection reads one framed section and returns the decompressed
// payload. The header is validated against the expected section type,
// the checksum is verified before decompression.
func ReadSection(r io.Reader, want SectionType) ([]byte, error) {
	var header SectionHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated %s section header", ErrCorrupted, want)
		}
		return nil, fmt.Errorf("read %s section header: %w", want, err)
	}

	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	if SectionType(header.Section) != want {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrInvalidSection, want, SectionType(header.Section))
	}
	if header.StoredSize > maxSectionSize {
		return nil, fmt.Errorf("%w: stored size %d exceeds limit", ErrCorrupted, header.StoredSize)
	}
	if header.RawSize > maxSectionSize {
		return nil, fmt.Errorf("%w: raw size %d exceeds limit", ErrCorrupted, header.RawSize)
	}

	stored := make([]byte, header.StoredSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, fmt.Errorf("%w: truncated %s section payload: %v", ErrCorrupted, want, err)
	}

	if actual := CalculateChecksum(stored); actual != header.Checksum {
		return nil, &ChecksumMismatchError{Expected: header.Checksum, Actual: actual}
	}

	payload, err := decompressPayload(stored, header.RawSize, CompressionType(header.Compression))
	if err != nil {
		return nil, fmt.Errorf("decompress %s section: %w", want, err)
	}
	return payload, nil
}
