// Package persistence provides the shared binary codec for index
// snapshots. All multi-byte values use explicit little-endian encoding,
// counts are uint64, strings and byte blobs are uint32 length-prefixed.
package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxBlobLen caps length prefixes accepted on read. Guards against
// allocating huge buffers from corrupt length fields.
const maxBlobLen = 1 << 30

// maxElementCount caps element counts accepted on read. Every encoded
// element occupies at least four bytes, so no section payload can hold
// more elements than this.
const maxElementCount = maxSectionSize / 4

// Writer encodes primitive values to an io.Writer.
type Writer struct {
	w       io.Writer
	scratch [8]byte
}

// NewWriter creates a new binary writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteUint32 writes a little-endian uint32.
func (bw *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(bw.scratch[:4], v)
	_, err := bw.w.Write(bw.scratch[:4])
	return err
}

// WriteUint64 writes a little-endian uint64.
func (bw *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(bw.scratch[:8], v)
	_, err := bw.w.Write(bw.scratch[:8])
	return err
}

// WriteString writes a uint32 length prefix followed by the raw bytes.
func (bw *Writer) WriteString(s string) error {
	if err := bw.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(bw.w, s)
	return err
}

// WriteBytes writes a uint32 length prefix followed by the raw bytes.
func (bw *Writer) WriteBytes(b []byte) error {
	if err := bw.WriteUint32(uint32(len(b))); err != nil {
		return err
	}
	_, err := bw.w.Write(b)
	return err
}

// WriteUint32Slice writes the elements back to back without a count
// prefix. The caller writes the count itself.
func (bw *Writer) WriteUint32Slice(slice []uint32) error {
	if len(slice) == 0 {
		return nil
	}
	buf := make([]byte, 0, 8*1024)
	for _, v := range slice {
		buf = binary.LittleEndian.AppendUint32(buf, v)
		if len(buf) == cap(buf) {
			if _, err := bw.w.Write(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		if _, err := bw.w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// Reader decodes primitive values from an io.Reader.
type Reader struct {
	r       io.Reader
	scratch [8]byte
}

// NewReader creates a new binary reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadUint32 reads a little-endian uint32.
func (br *Reader) ReadUint32() (uint32, error) {
	if _, err := io.ReadFull(br.r, br.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(br.scratch[:4]), nil
}

// ReadUint64 reads a little-endian uint64.
func (br *Reader) ReadUint64() (uint64, error) {
	if _, err := io.ReadFull(br.r, br.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(br.scratch[:8]), nil
}

// ReadCount reads a uint64 element count and rejects values no valid
// payload could satisfy. Callers may size allocations by the result.
func (br *Reader) ReadCount() (uint64, error) {
	n, err := br.ReadUint64()
	if err != nil {
		return 0, err
	}
	if n > maxElementCount {
		return 0, fmt.Errorf("%w: element count %d exceeds limit", ErrCorrupted, n)
	}
	return n, nil
}

// ReadString reads a uint32 length-prefixed string.
func (br *Reader) ReadString() (string, error) {
	b, err := br.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes reads a uint32 length-prefixed byte blob.
func (br *Reader) ReadBytes() ([]byte, error) {
	n, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > maxBlobLen {
		return nil, fmt.Errorf("%w: blob length %d exceeds limit", ErrCorrupted, n)
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadUint32Slice reads count elements written by WriteUint32Slice.
func (br *Reader) ReadUint32Slice(count int) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	if count > maxBlobLen/4 {
		return nil, fmt.Errorf("%w: slice length %d exceeds limit", ErrCorrupted, count)
	}
	slice := make([]uint32, count)
	buf := make([]byte, 4*1024)
	for i := 0; i < count; {
		chunk := (count - i) * 4
		if chunk > len(buf) {
			chunk = len(buf)
		}
		if _, err := io.ReadFull(br.r, buf[:chunk]); err != nil {
			return nil, err
		}
		for off := 0; off < chunk; off += 4 {
			slice[i] = binary.LittleEndian.Uint32(buf[off : off+4])
			i++
		}
	}
	return slice, nil
}
