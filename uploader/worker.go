package uploader

import (
	"errors"
	"fmt"

	"github.com/bitrise-io/go-liveupload/uploader/buffer"
	"github.com/bitrise-io/go-liveupload/uploader/transfer"
)

// run is the worker loop: wait for a chunk, upload it, release the slot.
func (u *Uploader) run() {
	defer close(u.done)
	defer u.shutdown()

	u.logger.Debugf("Uploader running...")
	for u.ctx.Err() == nil {
		u.logger.Debugf("Waiting for user data...")
		select {
		case <-u.wake:
		case <-u.ctx.Done():
			return
		}

		data, err := u.buffer.GetBuffer()
		if errors.Is(err, buffer.ErrNotLocked) {
			u.logger.Debugf("Woke with unlocked buffer, stopping")
			return
		}

		u.upload(data)
	}
}

func (u *Uploader) upload(data []byte) {
	u.mu.Lock()
	u.stats.beginChunk()
	u.mu.Unlock()

	u.logger.Debugf("Uploading %d bytes...", len(data))
	err := u.engine.Upload(u.ctx, data)

	u.mu.Lock()
	u.stats.finishChunk(err == nil)
	if unlockErr := u.buffer.Unlock(); unlockErr != nil {
		u.mu.Unlock()
		panic(fmt.Sprintf("release exchange buffer: %s", unlockErr))
	}
	u.mu.Unlock()

	switch {
	case err == nil:
		u.logger.Debugf("Chunk uploaded")
	case transfer.IsAborted(err):
		u.logger.Warnf("Chunk upload aborted: %s", err)
	default:
		u.logger.Errorf("Chunk upload failed, chunk dropped: %s", err)
	}
}

// shutdown releases a chunk that was accepted but never started and marks
// the uploader stopped.
func (u *Uploader) shutdown() {
	u.mu.Lock()
	if u.buffer.IsLocked() {
		u.logger.Warnf("Stopped with a pending chunk, dropping it")
		u.stats.finishChunk(false)
		if err := u.buffer.Unlock(); err != nil {
			u.mu.Unlock()
			panic(fmt.Sprintf("release exchange buffer: %s", err))
		}
	}
	u.lifecycle = lifecycleStopped
	u.cancel()
	engine := u.engine
	u.mu.Unlock()

	engine.Close()
	u.logger.Debugf("Uploader done")
}
