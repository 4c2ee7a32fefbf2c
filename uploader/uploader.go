// Package uploader hands chunks of a growing file to a single background
// worker that uploads them one at a time.
//
// The producer side never blocks: Submit either places the chunk in a
// one-slot exchange buffer or reports SubmitBusy. The worker drains the slot
// through a transfer.Engine, updates Stats from the engine's progress
// notifications and releases the slot whatever the transfer outcome was.
// Failed chunks are logged and dropped; resubmitting them is up to the caller.
package uploader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitrise-io/go-liveupload/uploader/buffer"
	"github.com/bitrise-io/go-liveupload/uploader/transfer"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Option customises an Uploader.
type Option func(*Uploader)

// WithEngineFactory replaces the default HTTP engine.
func WithEngineFactory(factory transfer.Factory) Option {
	return func(u *Uploader) {
		u.engineFactory = factory
	}
}

// WithClock replaces time.Now for stats calculations.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		u.now = now
	}
}

// Uploader coordinates a producer and the upload worker.
type Uploader struct {
	logger        log.Logger
	engineFactory transfer.Factory
	now           func() time.Time

	// mu is the coordination lock. It guards lifecycle, stats and the
	// occupancy transitions of buffer.
	mu        sync.Mutex
	lifecycle lifecycle
	engine    transfer.Engine
	buffer    *buffer.LockableBuffer
	stats     statsTracker

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Uploader. Initialize and Start must be called before use.
func New(logger log.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		logger:        logger,
		engineFactory: transfer.NewHTTPFactory(),
		now:           time.Now,
		buffer:        buffer.New(),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Initialize validates settings, builds the transfer engine and resets the
// stats. It must be called exactly once, before Start.
func (u *Uploader) Initialize(settings Settings) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.lifecycle != lifecycleNew {
		return fmt.Errorf("%w: already initialized", ErrConfiguration)
	}
	if err := settings.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	engine, err := u.engineFactory(settings.session(), progressListener{u: u}, u.logger)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineInit, err)
	}
	if engine == nil {
		return fmt.Errorf("%w: factory returned no engine", ErrEngineInit)
	}

	u.engine = engine
	u.stats.reset(u.now())
	u.lifecycle = lifecycleInitialized
	u.logger.Debugf("Uploader initialized, target: %s", settings.TargetURL)

	return nil
}

// Start runs the upload worker.
func (u *Uploader) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch u.lifecycle {
	case lifecycleNew:
		return ErrNotInitialized
	case lifecycleInitialized:
	default:
		return ErrAlreadyRunning
	}

	u.ctx, u.cancel = context.WithCancel(context.Background())
	u.done = make(chan struct{})
	u.lifecycle = lifecycleRunning
	go u.run()

	return nil
}

// Submit hands a chunk to the worker without blocking. The chunk is copied.
// SubmitBusy is returned when the slot is occupied or the coordination lock
// is contended; neither is an error.
func (u *Uploader) Submit(data []byte) (SubmitStatus, error) {
	if len(data) == 0 {
		return SubmitRejected, ErrInvalidArgument
	}

	if !u.mu.TryLock() {
		return SubmitBusy, nil
	}
	defer u.mu.Unlock()

	if u.lifecycle != lifecycleRunning {
		return SubmitRejected, ErrNotRunning
	}
	if u.buffer.IsLocked() {
		return SubmitBusy, nil
	}

	if err := u.buffer.Init(data); err != nil {
		return SubmitRejected, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := u.buffer.Lock(); err != nil {
		panic(fmt.Sprintf("exchange buffer locked behind the coordination lock: %s", err))
	}

	u.logger.Debugf("Waking uploader with %d bytes", len(data))
	select {
	case u.wake <- struct{}{}:
	default:
	}

	return SubmitAccepted, nil
}

// GetStats returns a consistent snapshot of the session stats. It may block
// briefly while the worker updates them.
func (u *Uploader) GetStats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats.snapshot(u.now())
}

// UploadComplete reports whether no chunk is pending. It never blocks and
// answers false when the coordination lock is contended, so a false result
// is only a hint.
func (u *Uploader) UploadComplete() bool {
	if !u.mu.TryLock() {
		return false
	}
	defer u.mu.Unlock()
	return !u.buffer.IsLocked()
}

// State returns the current state.
func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch u.lifecycle {
	case lifecycleNew:
		return StateNew
	case lifecycleInitialized:
		return StateInitialized
	case lifecycleStopping:
		return StateStopRequested
	case lifecycleStopped:
		return StateStopped
	}
	if u.buffer.IsLocked() {
		return StateUploading
	}
	return StateIdle
}

// Stop asks the worker to exit and waits until it has. A transfer in flight
// is aborted at the engine's next progress or response notification. Stop
// has no timeout.
func (u *Uploader) Stop() error {
	u.mu.Lock()
	switch u.lifecycle {
	case lifecycleRunning:
		u.logger.Debugf("Stop requested")
		u.lifecycle = lifecycleStopping
		// Wakes an idle worker and interrupts a blocked transfer.
		u.cancel()
	case lifecycleStopping:
	default:
		u.mu.Unlock()
		return ErrNotRunning
	}
	done := u.done
	u.mu.Unlock()

	<-done
	return nil
}

func (u *Uploader) stopRequested() bool {
	return u.lifecycle == lifecycleStopping || u.lifecycle == lifecycleStopped
}

// progressListener feeds engine notifications into the uploader.
type progressListener struct {
	u *Uploader
}

func (l progressListener) Progress(sent, total int64) bool {
	u := l.u
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.stopRequested() {
		u.logger.Debugf("Stop requested, aborting transfer")
		return false
	}

	u.stats.progress(sent, u.now())
	u.logger.Debugf("Sent %d/%d bytes, session rate: %.0f B/s", sent, total, u.stats.bytesPerSecond)
	return true
}

func (l progressListener) ResponseData(p []byte) bool {
	u := l.u
	u.mu.Lock()
	defer u.mu.Unlock()

	u.logger.Debugf("From server: %s", string(p))
	return !u.stopRequested()
}
