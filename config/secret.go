package config

// Secret is a string input that never shows up in logs.
type Secret string

// String masks the value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}
