package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/bitrise-io/go-liveupload/secretkeys"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPEngine posts each chunk as a multipart form to a fixed URL.
type HTTPEngine struct {
	session  Session
	client   *retryablehttp.Client
	form     *formBuilder
	listener Listener
	logger   log.Logger
}

// NewHTTPEngine creates an engine bound to session. Lost chunks are not
// retried at this level: the client is configured for a single attempt.
func NewHTTPEngine(session Session, listener Listener, logger log.Logger) (*HTTPEngine, error) {
	if listener == nil {
		return nil, fmt.Errorf("listener must not be nil")
	}

	session = session.WithDefaults()
	if err := validateTargetURL(session.URL); err != nil {
		return nil, err
	}

	form, err := newFormBuilder(session)
	if err != nil {
		return nil, err
	}

	client := retryhttp.NewClient(logger)
	client.HTTPClient = DefaultHTTPClient()
	client.RetryMax = 0
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPEngine{
		session:  session,
		client:   client,
		form:     form,
		listener: listener,
		logger:   logger,
	}, nil
}

// NewHTTPFactory returns a Factory producing HTTP engines.
func NewHTTPFactory() Factory {
	return func(session Session, listener Listener, logger log.Logger) (Engine, error) {
		return NewHTTPEngine(session, listener, logger)
	}
}

// Upload posts data and waits for the complete response.
func (e *HTTPEngine) Upload(ctx context.Context, data []byte) error {
	if e.session.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.session.Timeout)
		defer cancel()
	}

	body, contentType, err := e.form.build(data)
	if err != nil {
		return &TransferError{Code: CodeRequest, Reason: "build form", Err: err}
	}

	var reader *progressReader
	bodyFn := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		reader = newProgressReader(body, e.listener)
		return reader, nil
	})

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.session.URL, bodyFn)
	if err != nil {
		return &TransferError{Code: CodeRequest, Reason: "create request", Err: err}
	}
	for k, v := range e.session.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))

	dumpReq := req.Request.Clone(ctx)
	dumpReq.Header = secretkeys.Redact(req.Header, e.session.SecretHeaders)
	dump, err := httputil.DumpRequest(dumpReq, false)
	if err != nil {
		e.logger.Warnf("error while dumping request: %s", err)
	}
	e.logger.Debugf("Chunk request dump: %s", string(dump))

	resp, err := e.client.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		if (reader != nil && reader.aborted) || errors.Is(err, ErrAborted) || ctx.Err() == context.Canceled {
			return abortedError("upload interrupted")
		}
		return &TransferError{Code: CodeTransport, Reason: "do request", Err: err}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			e.logger.Printf(err.Error())
		}
	}(resp.Body)

	e.logger.Debugf("Server response code: %d", resp.StatusCode)

	sink := &responseSink{listener: e.listener}
	if _, err := io.Copy(sink, resp.Body); err != nil {
		if sink.aborted || ctx.Err() == context.Canceled {
			return abortedError("response interrupted")
		}
		return &TransferError{Code: CodeTransport, Reason: "read response", Err: err}
	}
	e.logger.Debugf("Server response: %s", sink.head.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransferError{
			Code:   resp.StatusCode,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(sink.head.String())),
		}
	}

	return nil
}

// Close closes idle connections and releases the encoder.
func (e *HTTPEngine) Close() {
	e.client.HTTPClient.CloseIdleConnections()
	e.form.close()
}

func validateTargetURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("target URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported target URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("target URL has no host: %s", raw)
	}
	return nil
}
