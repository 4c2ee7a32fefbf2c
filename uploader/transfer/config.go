package transfer

import (
	"net/http"
	"time"

	"github.com/bitrise-io/go-liveupload/secretkeys"
)

const (
	// DefaultFormName is the multipart field carrying the chunk.
	DefaultFormName = "webm_file"
	// DefaultContentType is the content type of the chunk part.
	DefaultContentType = "video/webm"
	// CompressionZstd enables zstd encoding of the chunk part.
	CompressionZstd = "zstd"
)

// WithDefaults returns a copy of s with empty optional fields filled in.
func (s Session) WithDefaults() Session {
	if s.FormName == "" {
		s.FormName = DefaultFormName
	}
	if s.ContentType == "" {
		s.ContentType = DefaultContentType
	}
	if s.LocalFileName == "" {
		s.LocalFileName = s.FormName
	}
	if s.SecretHeaders == nil {
		s.SecretHeaders = secretkeys.DefaultKeys
	}
	return s
}

// DefaultHTTPClient creates an HTTP client for chunk uploads. There is a
// single connection in use at a time, so the pool is kept small.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No timeout - per chunk timeouts are handled via context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        2,
			MaxConnsPerHost:     2,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}
