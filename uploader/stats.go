package uploader

import (
	"time"
)

// Stats is a snapshot of upload progress for the whole session.
type Stats struct {
	// BytesSent is the number of bytes sent since Initialize, including the
	// progress of the chunk in flight.
	BytesSent int64
	// BytesPerSecond is BytesSent divided by the time elapsed since
	// Initialize, as of the last progress notification.
	BytesPerSecond float64
	// ChunkBytesSent is the progress of the chunk in flight, or of the last
	// chunk when idle.
	ChunkBytesSent int64
	// ChunksSent counts chunks delivered successfully.
	ChunksSent int64
	// ChunksFailed counts chunks that failed, were aborted or were dropped.
	ChunksFailed int64
	// Elapsed is the time since Initialize.
	Elapsed time.Duration
}

// statsTracker accumulates Stats. It has no lock of its own: every method
// must be called with the Uploader's coordination lock held.
type statsTracker struct {
	start          time.Time
	committed      int64
	inflight       int64
	lastChunk      int64
	bytesPerSecond float64
	chunksSent     int64
	chunksFailed   int64
}

func (s *statsTracker) reset(now time.Time) {
	*s = statsTracker{start: now}
}

func (s *statsTracker) beginChunk() {
	s.inflight = 0
	s.lastChunk = 0
}

// progress records the cumulative byte count of the chunk in flight. Counts
// lower than an earlier report are ignored so BytesSent never decreases.
func (s *statsTracker) progress(sent int64, now time.Time) {
	if sent > s.inflight {
		s.inflight = sent
		s.lastChunk = sent
	}

	elapsed := now.Sub(s.start).Seconds()
	if elapsed > 0 {
		s.bytesPerSecond = float64(s.committed+s.inflight) / elapsed
	}
}

func (s *statsTracker) finishChunk(ok bool) {
	s.committed += s.inflight
	s.inflight = 0
	if ok {
		s.chunksSent++
	} else {
		s.chunksFailed++
	}
}

func (s *statsTracker) snapshot(now time.Time) Stats {
	return Stats{
		BytesSent:      s.committed + s.inflight,
		BytesPerSecond: s.bytesPerSecond,
		ChunkBytesSent: s.lastChunk,
		ChunksSent:     s.chunksSent,
		ChunksFailed:   s.chunksFailed,
		Elapsed:        now.Sub(s.start),
	}
}
