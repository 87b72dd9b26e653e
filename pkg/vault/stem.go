package vault

import (
	"strings"

	"github.com/google/uuid"
)

// NewStem mints a fresh UUID v4 stem for a new correlated file family.
func NewStem() string {
	return uuid.New().String()
}

// ParseStem extracts the stem and kind from a filename such as
// "<uuid>.action.yaml", returning ok=false if it doesn't match any known
// suffix.
func ParseStem(filename string) (stem string, kind Kind, ok bool) {
	for k, suf := range suffixes {
		if strings.HasSuffix(filename, suf) {
			return strings.TrimSuffix(filename, suf), k, true
		}
	}
	return "", "", false
}

// ValidStem reports whether s parses as a UUID, the required shape for a
// vault stem (spec §3: "id (UUID v4, globally unique)").
func ValidStem(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
