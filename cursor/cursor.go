// Package cursor persists the ingestion offset between runs so loads
// resume where the previous one ended.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/taggo/internal/fs"
)

// ErrMalformed is returned when a persisted cursor cannot be parsed.
// Callers typically fall back to offset zero and re-ingest.
var ErrMalformed = errors.New("malformed cursor")

// Store persists the byte offset up to which the ingestion stream has
// been consumed.
type Store interface {
	// Load returns the persisted offset. A missing cursor is not an
	// error; it reads as zero.
	Load(ctx context.Context) (uint64, error)

	// Save replaces the persisted offset.
	Save(ctx context.Context, offset uint64) error
}

// FileStore keeps the offset in a plain-text file holding a single
// unsigned decimal. The file is rewritten in full on every save.
type FileStore struct {
	path string
	fsys fs.FileSystem
}

// NewFileStore creates a FileStore at path. A nil fsys uses the local
// file system.
func NewFileStore(path string, fsys fs.FileSystem) *FileStore {
	if fsys == nil {
		fsys = fs.Default
	}
	return &FileStore{path: path, fsys: fsys}
}

// Load reads and parses the cursor file. A missing file yields zero.
// Unparsable contents yield zero wrapped in ErrMalformed so callers
// can decide to start over.
func (s *FileStore) Load(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := fs.ReadFile(s.fsys, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cursor %s: %w", s.path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, fmt.Errorf("%w: %s is empty", ErrMalformed, s.path)
	}
	offset, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s holds %q", ErrMalformed, s.path, text)
	}
	return offset, nil
}

// Save atomically rewrites the cursor file with the new offset.
func (s *FileStore) Save(ctx context.Context, offset uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := strconv.AppendUint(nil, offset, 10)
	if err := fs.WriteFileAtomic(s.fsys, s.path, data, 0644); err != nil {
		return fmt.Errorf("write cursor %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore keeps the offset in memory. Useful for tests and for
// callers that manage persistence themselves.
type MemoryStore struct {
	mu     sync.Mutex
	offset uint64
}

// NewMemoryStore creates a MemoryStore starting at zero.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored offset.
func (s *MemoryStore) Load(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, nil
}

// Save replaces the stored offset.
func (s *MemoryStore) Save(_ context.Context, offset uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
	return nil
}
