package config

import (
	"fmt"
	"strings"
)

// ParseKeyValues parses newline separated `key<sep>value` pairs. Blank lines
// are skipped; keys and values are trimmed.
func ParseKeyValues(s, sep string) (map[string]string, error) {
	values := map[string]string{}
	for i, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, sep)
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("line %d: expected key%svalue, got %q", i+1, sep, line)
		}
		values[key] = strings.TrimSpace(value)
	}
	return values, nil
}
