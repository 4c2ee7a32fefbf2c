package transfer

import (
	"bytes"
)

// progressReader feeds a request body and reports every read to a Listener.
type progressReader struct {
	r        *bytes.Reader
	total    int64
	sent     int64
	listener Listener
	aborted  bool
}

func newProgressReader(body []byte, listener Listener) *progressReader {
	return &progressReader{
		r:        bytes.NewReader(body),
		total:    int64(len(body)),
		listener: listener,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.aborted {
		return 0, ErrAborted
	}

	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if !p.listener.Progress(p.sent, p.total) {
			p.aborted = true
			return n, ErrAborted
		}
	}
	return n, err
}

// Len lets retryablehttp learn the body size without reading it.
func (p *progressReader) Len() int {
	return p.r.Len()
}

const maxErrorBodySize = 1024

// responseSink forwards response bytes to a Listener and keeps the head of
// the body for error reports.
type responseSink struct {
	listener Listener
	head     bytes.Buffer
	aborted  bool
}

func (s *responseSink) Write(p []byte) (int, error) {
	if !s.listener.ResponseData(p) {
		s.aborted = true
		return 0, ErrAborted
	}

	if room := maxErrorBodySize - s.head.Len(); room > 0 {
		if room > len(p) {
			room = len(p)
		}
		s.head.Write(p[:room])
	}
	return len(p), nil
}
