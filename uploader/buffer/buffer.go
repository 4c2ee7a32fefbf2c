// Package buffer provides the single-slot lockable buffer used to hand one
// chunk from a producer to the upload worker.
package buffer

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidArgument is returned by Init for an empty payload.
	ErrInvalidArgument = errors.New("invalid buffer payload")
	// ErrAlreadyLocked is returned by Lock when the buffer is occupied.
	ErrAlreadyLocked = errors.New("buffer already locked")
	// ErrNotLocked is returned by Unlock and GetBuffer when the buffer is free.
	ErrNotLocked = errors.New("buffer not locked")
)

// LockableBuffer holds at most one chunk. The lock flag marks the chunk as
// owned by the upload worker; it does not guard the Go memory itself, which
// is protected by an internal mutex.
type LockableBuffer struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// New creates an empty, unlocked buffer.
func New() *LockableBuffer {
	return &LockableBuffer{}
}

// Init replaces the payload with a copy of data. It does not lock the buffer.
func (b *LockableBuffer) Init(data []byte) error {
	if len(data) == 0 {
		return ErrInvalidArgument
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Reuse the backing array when it is large enough; chunks from a capture
	// pipeline tend to have similar sizes.
	if cap(b.data) >= len(data) {
		b.data = b.data[:len(data)]
	} else {
		b.data = make([]byte, len(data))
	}
	copy(b.data, data)

	return nil
}

// Lock marks the buffer occupied.
func (b *LockableBuffer) Lock() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.locked {
		return ErrAlreadyLocked
	}
	b.locked = true
	return nil
}

// Unlock marks the buffer free.
func (b *LockableBuffer) Unlock() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.locked {
		return ErrNotLocked
	}
	b.locked = false
	return nil
}

// IsLocked reports whether the buffer is occupied.
func (b *LockableBuffer) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// GetBuffer returns the payload of a locked buffer. The returned slice must
// be treated as read-only and must not be retained after Unlock.
func (b *LockableBuffer) GetBuffer() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.locked {
		return nil, ErrNotLocked
	}
	return b.data, nil
}
