// Package secretkeys names the request headers whose values must not be
// logged.
package secretkeys

import (
	"net/http"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
)

const (
	EnvKey    = "LIVEUPLOAD_SECRET_HEADERS"
	separator = ","

	redacted = "[REDACTED]"
)

// DefaultKeys are always treated as secret.
var DefaultKeys = []string{"Authorization", "Proxy-Authorization", "Cookie", "X-Api-Key"}

type Manager interface {
	Load(envRepository env.Repository) []string
	Format(keys []string) string
}

type manager struct {
}

func NewManager() Manager {
	return manager{}
}

// Load returns DefaultKeys extended with the comma separated list in EnvKey.
func (manager) Load(envRepository env.Repository) []string {
	keys := append([]string{}, DefaultKeys...)
	for _, key := range strings.Split(envRepository.Get(EnvKey), separator) {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys = append(keys, http.CanonicalHeaderKey(key))
	}
	return keys
}

func (manager) Format(keys []string) string {
	return strings.Join(keys, separator)
}

// Redact returns a copy of header with the values of keys replaced.
func Redact(header http.Header, keys []string) http.Header {
	clone := header.Clone()
	for _, key := range keys {
		if _, ok := clone[http.CanonicalHeaderKey(key)]; ok {
			clone.Set(key, redacted)
		}
	}
	return clone
}
