package persistence

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteUint32(42))
	require.NoError(t, w.WriteUint64(1<<40))
	require.NoError(t, w.WriteString("doc-1"))
	require.NoError(t, w.WriteString(""))
	require.NoError(t, w.WriteBytes([]byte{0xde, 0xad, 0xbe, 0xef}))
	require.NoError(t, w.WriteUint64(3))
	require.NoError(t, w.WriteUint32Slice([]uint32{7, 8, 9}))

	r := NewReader(&buf)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), u32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "doc-1", s)

	s, err = r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)

	b, err := r.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)

	n, err := r.ReadUint64()
	require.NoError(t, err)
	slice, err := r.ReadUint32Slice(int(n))
	require.NoError(t, err)
	assert.Equal(t, []uint32{7, 8, 9}, slice)
}

func TestWriterLittleEndianLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteUint32(0x01020304))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf.Bytes())

	buf.Reset()
	require.NoError(t, w.WriteString("ab"))
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 'a', 'b'}, buf.Bytes())
}

func TestReaderTruncatedInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader) error
	}{
		{
			name: "uint32 short",
			data: []byte{0x01, 0x02},
			read: func(r *Reader) error { _, err := r.ReadUint32(); return err },
		},
		{
			name: "uint64 short",
			data: []byte{0x01, 0x02, 0x03},
			read: func(r *Reader) error { _, err := r.ReadUint64(); return err },
		},
		{
			name: "string body short",
			data: []byte{0x05, 0x00, 0x00, 0x00, 'a', 'b'},
			read: func(r *Reader) error { _, err := r.ReadString(); return err },
		},
		{
			name: "slice body short",
			data: []byte{0x01, 0x02, 0x03, 0x04, 0x05},
			read: func(r *Reader) error { _, err := r.ReadUint32Slice(2); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(tt.data))
			err := tt.read(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF))
		})
	}
}

func TestReadBytesLengthCap(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint32(maxBlobLen+1))

	r := NewReader(&buf)
	_, err := r.ReadBytes()
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestReadCountCap(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint64(3))
	require.NoError(t, w.WriteUint64(maxElementCount+1))

	r := NewReader(&buf)
	n, err := r.ReadCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	_, err = r.ReadCount()
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestWriteUint32SliceLarge(t *testing.T) {
	// Exceeds the internal chunk buffer to cover flush boundaries.
	slice := make([]uint32, 5000)
	for i := range slice {
		slice[i] = uint32(i * 3)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint32Slice(slice))
	require.Equal(t, 4*len(slice), buf.Len())

	r := NewReader(&buf)
	got, err := r.ReadUint32Slice(len(slice))
	require.NoError(t, err)
	assert.Equal(t, slice, got)
}
