package schema

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Version is a MAJOR.MINOR.PATCH schema version. Pre-release and build
// extensions are not supported.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a "MAJOR.MINOR.PATCH" string
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid schema version %q: expected MAJOR.MINOR.PATCH", s)
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid schema version %q: bad component %q", s, part)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for
// registry literals.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 comparing v to other component by component
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return cmp.Compare(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmp.Compare(v.Minor, other.Minor)
	default:
		return cmp.Compare(v.Patch, other.Patch)
	}
}

// Less reports whether v sorts before other
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// IsZero reports whether v is the zero value
func (v Version) IsZero() bool {
	return v == Version{}
}
