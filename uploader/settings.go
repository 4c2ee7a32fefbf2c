package uploader

import (
	"fmt"
	"time"

	"github.com/bitrise-io/go-liveupload/uploader/transfer"
	"github.com/go-playground/validator/v10"
)

// Settings configures an Uploader. It is copied by Initialize and never
// changes afterwards.
type Settings struct {
	// TargetURL receives the chunks. The HTTP engine requires http or https.
	TargetURL string `validate:"required,url"`
	// Headers are added to every request.
	Headers map[string]string
	// FormFields are sent as form values along with every chunk.
	FormFields map[string]string
	// LocalFileName labels the chunk part; the file itself is never read.
	LocalFileName string
	// FormName is the form field of the chunk. Default: webm_file
	FormName string
	// ContentType of the chunk part. Default: video/webm
	ContentType string
	// Compression of the chunk part: empty or "zstd".
	Compression string `validate:"omitempty,oneof=zstd"`
	// Timeout bounds a single chunk transfer. Zero means no timeout.
	Timeout time.Duration `validate:"gte=0"`
	// SecretHeaders are redacted from debug logs. Default:
	// secretkeys.DefaultKeys
	SecretHeaders []string
}

var settingsValidator = validator.New()

func (s Settings) validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}
	return nil
}

// session converts the settings into an engine session. Maps are copied so
// the caller cannot mutate them after Initialize.
func (s Settings) session() transfer.Session {
	return transfer.Session{
		URL:           s.TargetURL,
		Headers:       copyMap(s.Headers),
		FormFields:    copyMap(s.FormFields),
		LocalFileName: s.LocalFileName,
		FormName:      s.FormName,
		ContentType:   s.ContentType,
		Compression:   s.Compression,
		Timeout:       s.Timeout,
		SecretHeaders: append([]string(nil), s.SecretHeaders...),
	}
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
