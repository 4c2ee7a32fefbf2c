// Package filereader reads a file that another process is still writing,
// such as the output of a live encoder.
package filereader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bitrise-io/go-liveupload/internal"
)

var (
	// ErrNotOpen is returned when reading before Open.
	ErrNotOpen = errors.New("file not open")
	// ErrTruncated is returned when the file shrank below the read offset.
	ErrTruncated = errors.New("file truncated")
)

// Reader returns the bytes appended to a file since the previous read.
// Thread-safe.
type Reader struct {
	osProxy internal.OsProxy
	file    *os.File
	path    string
	offset  int64
	mu      sync.Mutex
}

// New creates a Reader. A nil osProxy uses the real file system.
func New(osProxy internal.OsProxy) *Reader {
	if osProxy == nil {
		osProxy = internal.RealOS{}
	}
	return &Reader{osProxy: osProxy}
}

// Open opens path for reading from its beginning.
func (r *Reader) Open(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	absPath, err := r.osProxy.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", path, err)
	}

	file, err := r.osProxy.Open(absPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	if r.file != nil {
		_ = r.file.Close()
	}
	r.file = file
	r.path = absPath
	r.offset = 0

	return nil
}

// ReadChunk returns at most max new bytes. It returns io.EOF when nothing
// was appended since the last call; later calls may return data again.
func (r *Reader) ReadChunk(max int) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", max)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil, ErrNotOpen
	}

	info, err := r.osProxy.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", r.path, err)
	}
	available := info.Size() - r.offset
	if available < 0 {
		return nil, fmt.Errorf("%w: size %d below offset %d", ErrTruncated, info.Size(), r.offset)
	}
	if available == 0 {
		return nil, io.EOF
	}
	if available < int64(max) {
		max = int(available)
	}

	chunk := make([]byte, max)
	n, err := r.file.ReadAt(chunk, r.offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read at offset %d: %w", r.offset, err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	r.offset += int64(n)
	return chunk[:n], nil
}

// Offset returns the number of bytes read so far.
func (r *Reader) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
