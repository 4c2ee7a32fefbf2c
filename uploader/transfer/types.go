// Package transfer contains the engines that move one chunk to its
// destination: a multipart HTTP POST engine and an S3 object engine.
// An engine performs exactly one blocking transfer per Upload call and
// reports progress and response data to a Listener bound at construction.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	// CodeTransport marks a failure below HTTP (DNS, TLS, connection reset...).
	CodeTransport = -1
	// CodeAborted marks a transfer stopped by its Listener or by its context.
	CodeAborted = -2
	// CodeRequest marks a failure while building the request.
	CodeRequest = -3
)

// ErrAborted is wrapped by every TransferError caused by an abort request.
var ErrAborted = errors.New("transfer aborted")

// Engine transfers one chunk per Upload call.
type Engine interface {
	// Upload blocks until data has been delivered or the transfer failed.
	// Failures are reported as *TransferError.
	Upload(ctx context.Context, data []byte) error
	// Close releases the resources held by the engine.
	Close()
}

// Listener receives notifications from an in-flight transfer. Returning
// false from either method asks the engine to abort immediately.
type Listener interface {
	// Progress reports the cumulative number of bytes sent for the current
	// transfer, and the total size of the request body.
	Progress(sent, total int64) bool
	// ResponseData is called with bytes received from the remote endpoint.
	ResponseData(p []byte) bool
}

// Factory builds an engine bound to a session and a listener.
type Factory func(session Session, listener Listener, logger log.Logger) (Engine, error)

// Session is the immutable description of where and how chunks are sent.
type Session struct {
	URL           string
	Headers       map[string]string
	FormFields    map[string]string
	LocalFileName string
	FormName      string
	ContentType   string
	Compression   string
	Timeout       time.Duration
	// SecretHeaders are redacted from debug logs.
	SecretHeaders []string
}

// TransferError describes a failed chunk transfer. Code is the HTTP status
// code returned by the endpoint, or one of the negative Code constants.
type TransferError struct {
	Code   int
	Reason string
	Err    error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer failed (code %d): %s: %s", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("transfer failed (code %d): %s", e.Code, e.Reason)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err was caused by an abort request.
func IsAborted(err error) bool {
	var transferErr *TransferError
	if errors.As(err, &transferErr) && transferErr.Code == CodeAborted {
		return true
	}
	return errors.Is(err, ErrAborted)
}

func abortedError(reason string) *TransferError {
	return &TransferError{Code: CodeAborted, Reason: reason, Err: ErrAborted}
}
