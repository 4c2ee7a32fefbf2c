// Package producer moves bytes from a growing source into an uploader.
package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bitrise-io/go-liveupload/uploader"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

var errBusy = errors.New("exchange buffer busy")

// Source yields newly available bytes; io.EOF means nothing new yet.
type Source interface {
	ReadChunk(max int) ([]byte, error)
}

// Submitter accepts chunks for upload.
type Submitter interface {
	Submit(data []byte) (uploader.SubmitStatus, error)
}

// Config controls the polling loop.
type Config struct {
	ChunkSize    int
	PollInterval time.Duration
	// BusyRetries is how many more times a busy Submit is retried within a
	// single poll before the chunk is carried over to the next one.
	BusyRetries uint
	BusyWait    time.Duration
	// IdleTimeout ends Run once the source produced nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
}

// Result summarizes a finished Run.
type Result struct {
	BytesSubmitted  int64
	ChunksSubmitted int
	BusyRetries     int
}

// Pump polls a Source and submits what it reads.
type Pump struct {
	source    Source
	submitter Submitter
	config    Config
	logger    log.Logger
	now       func() time.Time

	pending []byte
	result  Result
}

// New creates a Pump.
func New(source Source, submitter Submitter, config Config, logger log.Logger) (*Pump, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", config.PollInterval)
	}
	return &Pump{
		source:    source,
		submitter: submitter,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run polls until the context is done, the idle timeout elapses or an
// unrecoverable error occurs. An idle timeout is a normal exit.
func (p *Pump) Run(ctx context.Context) (Result, error) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	lastData := p.now()
	for {
		produced, err := p.drain()
		if err != nil {
			return p.result, err
		}
		if produced {
			lastData = p.now()
		}

		if p.pending == nil && p.config.IdleTimeout > 0 && p.now().Sub(lastData) >= p.config.IdleTimeout {
			p.logger.Infof("No new data for %s, finishing", p.config.IdleTimeout)
			return p.result, nil
		}

		select {
		case <-ctx.Done():
			if p.pending != nil {
				p.logger.Warnf("Interrupted with %d bytes not yet submitted", len(p.pending))
			}
			return p.result, ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain reads and submits until the source is exhausted or the uploader
// stays busy. It reports whether new bytes were read.
func (p *Pump) drain() (bool, error) {
	produced := false
	for {
		if p.pending == nil {
			chunk, err := p.source.ReadChunk(p.config.ChunkSize)
			if errors.Is(err, io.EOF) {
				return produced, nil
			}
			if err != nil {
				return produced, fmt.Errorf("read chunk: %w", err)
			}
			p.pending = chunk
			produced = true
		}

		accepted, err := p.submitPending()
		if err != nil {
			return produced, err
		}
		if !accepted {
			p.logger.Debugf("Uploader busy, keeping %d bytes for the next poll", len(p.pending))
			return produced, nil
		}
	}
}

func (p *Pump) submitPending() (bool, error) {
	var rejected error
	err := retry.Times(p.config.BusyRetries).Wait(p.config.BusyWait).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			p.result.BusyRetries++
		}
		status, err := p.submitter.Submit(p.pending)
		switch status {
		case uploader.SubmitAccepted:
			return nil, false
		case uploader.SubmitBusy:
			return errBusy, false
		default:
			rejected = fmt.Errorf("submit rejected: %w", err)
			return rejected, true
		}
	})
	if rejected != nil {
		return false, rejected
	}
	if errors.Is(err, errBusy) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p.result.BytesSubmitted += int64(len(p.pending))
	p.result.ChunksSubmitted++
	p.logger.Debugf("Submitted %d bytes", len(p.pending))
	p.pending = nil
	return true, nil
}
