package music

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Artist mirrors a catalog artist
type Artist struct {
	ID   string
	Name string

	// TimeFetched is the Unix time at which all of the artist's albums were
	// retrieved, or 0 if they never were.
	TimeFetched int64
}

// Fetched reports whether the artist's albums have been retrieved
func (a Artist) Fetched() bool {
	return a.TimeFetched > 0
}

// NormalizeName trims surrounding whitespace and converts a catalog name to
// Unicode NFC so that equal names compare equal byte for byte.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
