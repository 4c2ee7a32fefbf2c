package transfer

import (
	"testing"

	"github.com/bitrise-io/go-liveupload/secretkeys"
	"github.com/stretchr/testify/assert"
)

func TestSession_WithDefaults(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		want    Session
	}{
		{
			name:    "empty",
			session: Session{URL: "http://localhost"},
			want: Session{
				URL:           "http://localhost",
				LocalFileName: DefaultFormName,
				FormName:      DefaultFormName,
				ContentType:   DefaultContentType,
				SecretHeaders: secretkeys.DefaultKeys,
			},
		},
		{
			name: "explicit values kept",
			session: Session{
				URL:           "http://localhost",
				LocalFileName: "rec.mkv",
				FormName:      "file",
				ContentType:   "video/x-matroska",
				SecretHeaders: []string{},
			},
			want: Session{
				URL:           "http://localhost",
				LocalFileName: "rec.mkv",
				FormName:      "file",
				ContentType:   "video/x-matroska",
				SecretHeaders: []string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.WithDefaults())
		})
	}
}
