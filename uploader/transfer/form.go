package transfer

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// compressionField is added to the form when the chunk part is compressed,
// for endpoints that do not look at part headers.
const compressionField = "compression"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// formBuilder renders one chunk and the session's form fields into a
// multipart/form-data body.
type formBuilder struct {
	session Session
	encoder *zstd.Encoder
}

func newFormBuilder(session Session) (*formBuilder, error) {
	b := &formBuilder{session: session}

	switch session.Compression {
	case "":
	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		b.encoder = encoder
	default:
		return nil, fmt.Errorf("unsupported compression: %s", session.Compression)
	}

	return b, nil
}

// encode returns the payload as it goes on the wire.
func (b *formBuilder) encode(data []byte) []byte {
	if b.encoder == nil {
		return data
	}
	return b.encoder.EncodeAll(data, make([]byte, 0, len(data)))
}

// build returns the form body and its content type.
func (b *formBuilder) build(data []byte) ([]byte, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	keys := make([]string, 0, len(b.session.FormFields))
	for k := range b.session.FormFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := w.WriteField(k, b.session.FormFields[k]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if b.encoder != nil {
		if err := w.WriteField(compressionField, CompressionZstd); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", compressionField, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(b.session.FormName), quoteEscaper.Replace(b.session.LocalFileName)))
	h.Set("Content-Type", b.session.ContentType)
	if b.encoder != nil {
		h.Set("Content-Encoding", CompressionZstd)
	}

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(b.encode(data)); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return body.Bytes(), w.FormDataContentType(), nil
}

func (b *formBuilder) close() {
	if b.encoder != nil {
		_ = b.encoder.Close()
	}
}
