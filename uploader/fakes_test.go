package uploader

import (
	"context"
	"sync"
	"time"

	"github.com/bitrise-io/go-liveupload/uploader/transfer"
	"github.com/bitrise-io/go-utils/v2/log"
)

// fakeEngine simulates a transfer engine. Each Upload reports progress one
// byte at a time, then takes its outcome from results (when set) or
// succeeds.
type fakeEngine struct {
	listener transfer.Listener

	// results, when non-nil, blocks each Upload until an outcome arrives.
	results chan error
	// spinUntilAborted keeps reporting progress until the listener asks to
	// abort, ignoring the context.
	spinUntilAborted bool
	// afterProgress runs after every progress notification.
	afterProgress func()

	started chan []byte

	mu     sync.Mutex
	chunks [][]byte
	closed bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{started: make(chan []byte, 16)}
}

func (e *fakeEngine) factory() transfer.Factory {
	return func(session transfer.Session, listener transfer.Listener, logger log.Logger) (transfer.Engine, error) {
		e.listener = listener
		return e, nil
	}
}

func (e *fakeEngine) Upload(ctx context.Context, data []byte) error {
	chunk := append([]byte(nil), data...)
	e.mu.Lock()
	e.chunks = append(e.chunks, chunk)
	e.mu.Unlock()
	e.started <- chunk

	total := int64(len(data))
	for sent := int64(1); sent <= total; sent++ {
		if !e.listener.Progress(sent, total) {
			return &transfer.TransferError{Code: transfer.CodeAborted, Reason: "progress", Err: transfer.ErrAborted}
		}
		if e.afterProgress != nil {
			e.afterProgress()
		}
	}

	if e.spinUntilAborted {
		for {
			if !e.listener.Progress(total, total) {
				return &transfer.TransferError{Code: transfer.CodeAborted, Reason: "progress", Err: transfer.ErrAborted}
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	if e.results != nil {
		select {
		case err := <-e.results:
			return err
		case <-ctx.Done():
			return &transfer.TransferError{Code: transfer.CodeAborted, Reason: "context", Err: transfer.ErrAborted}
		}
	}

	if !e.listener.ResponseData([]byte("ok")) {
		return &transfer.TransferError{Code: transfer.CodeAborted, Reason: "response", Err: transfer.ErrAborted}
	}
	return nil
}

func (e *fakeEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

func (e *fakeEngine) uploaded() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]byte(nil), e.chunks...)
}

func (e *fakeEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
