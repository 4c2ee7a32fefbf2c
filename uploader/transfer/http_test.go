package transfer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu            sync.Mutex
	progress      []int64
	total         int64
	response      []byte
	abortProgress bool
	abortResponse bool
}

func (l *recordingListener) Progress(sent, total int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, sent)
	l.total = total
	return !l.abortProgress
}

func (l *recordingListener) ResponseData(p []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.response = append(l.response, p...)
	return !l.abortResponse
}

type receivedPart struct {
	name        string
	fileName    string
	contentType string
	encoding    string
	data        []byte
}

func readParts(t *testing.T, r *http.Request) map[string]receivedPart {
	mr, err := r.MultipartReader()
	require.NoError(t, err)

	parts := map[string]receivedPart{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts[part.FormName()] = receivedPart{
			name:        part.FormName(),
			fileName:    part.FileName(),
			contentType: part.Header.Get("Content-Type"),
			encoding:    part.Header.Get("Content-Encoding"),
			data:        data,
		}
	}
	return parts
}

func TestHTTPEngine_Upload_Success(t *testing.T) {
	// Given
	var parts map[string]receivedPart
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		header = r.Header.Clone()
		parts = readParts(t, r)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	listener := &recordingListener{}
	engine, err := NewHTTPEngine(Session{
		URL:           server.URL + "/up",
		Headers:       map[string]string{"X-Stream-Id": "abc"},
		FormFields:    map[string]string{"id": "abc", "session": "1"},
		LocalFileName: "live.webm",
	}, listener, log.NewLogger())
	require.NoError(t, err)
	defer engine.Close()

	// When
	err = engine.Upload(context.Background(), []byte{0x01, 0x02, 0x03})

	// Then
	require.NoError(t, err)
	assert.Equal(t, "abc", header.Get("X-Stream-Id"))
	assert.Equal(t, "abc", string(parts["id"].data))
	assert.Equal(t, "1", string(parts["session"].data))

	file := parts[DefaultFormName]
	assert.Equal(t, "live.webm", file.fileName)
	assert.Equal(t, DefaultContentType, file.contentType)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, file.data)
	assert.Empty(t, file.encoding)

	require.NotEmpty(t, listener.progress)
	assert.Equal(t, listener.total, listener.progress[len(listener.progress)-1])
	for i := 1; i < len(listener.progress); i++ {
		assert.GreaterOrEqual(t, listener.progress[i], listener.progress[i-1])
	}
	assert.Equal(t, "ok", string(listener.response))
}

func TestHTTPEngine_Upload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("temporary error"))
	}))
	defer server.Close()

	engine, err := NewHTTPEngine(Session{URL: server.URL}, &recordingListener{}, log.NewLogger())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.Upload(context.Background(), []byte("chunk"))

	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, http.StatusInternalServerError, transferErr.Code)
	assert.Contains(t, transferErr.Reason, "temporary error")
	assert.False(t, IsAborted(err))
}

func TestHTTPEngine_Upload_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	engine, err := NewHTTPEngine(Session{URL: url}, &recordingListener{}, log.NewLogger())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.Upload(context.Background(), []byte("chunk"))

	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, CodeTransport, transferErr.Code)
}

func TestHTTPEngine_Upload_AbortFromProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	listener := &recordingListener{abortProgress: true}
	engine, err := NewHTTPEngine(Session{URL: server.URL}, listener, log.NewLogger())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.Upload(context.Background(), make([]byte, 64*1024))

	require.Error(t, err)
	assert.True(t, IsAborted(err), "got: %v", err)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestHTTPEngine_Upload_AbortFromResponseData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("response body"))
	}))
	defer server.Close()

	listener := &recordingListener{abortResponse: true}
	engine, err := NewHTTPEngine(Session{URL: server.URL}, listener, log.NewLogger())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.Upload(context.Background(), []byte("chunk"))

	assert.True(t, IsAborted(err), "got: %v", err)
}

func TestHTTPEngine_Upload_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	engine, err := NewHTTPEngine(Session{URL: server.URL}, &recordingListener{}, log.NewLogger())
	require.NoError(t, err)
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err = engine.Upload(ctx, []byte("chunk"))

	assert.True(t, IsAborted(err), "got: %v", err)
}

func TestHTTPEngine_Upload_Zstd(t *testing.T) {
	payload := []byte("a webm cluster that compresses well well well well well well")

	var parts map[string]receivedPart
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts = readParts(t, r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	engine, err := NewHTTPEngine(Session{URL: server.URL, Compression: CompressionZstd}, &recordingListener{}, log.NewLogger())
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Upload(context.Background(), payload))

	file := parts[DefaultFormName]
	assert.Equal(t, CompressionZstd, file.encoding)
	assert.Equal(t, CompressionZstd, string(parts[compressionField].data))

	decoder, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer decoder.Close()
	decoded, err := decoder.DecodeAll(file.data, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestNewHTTPEngine_InvalidSession(t *testing.T) {
	tests := []struct {
		name    string
		session Session
	}{
		{name: "empty URL", session: Session{URL: ""}},
		{name: "blank URL", session: Session{URL: "   "}},
		{name: "unsupported scheme", session: Session{URL: "ftp://example.com/up"}},
		{name: "missing host", session: Session{URL: "https:///up"}},
		{name: "unknown compression", session: Session{URL: "https://example.com/up", Compression: "gzip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPEngine(tt.session, &recordingListener{}, log.NewLogger())
			assert.Error(t, err)
		})
	}
}
