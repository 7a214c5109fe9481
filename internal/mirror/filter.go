package mirror

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"
)

// Filter matches replica-relative paths against exclude glob patterns
// (doublestar syntax, e.g. "**/*.tmp" or ".cache/**"). Excluded paths are
// invisible to the mirror: never copied to the replica and never deleted
// from it. Paths and patterns are NFC-normalized before matching so that
// differently composed Unicode names still match.
type Filter struct {
	patterns []string
}

// NewFilter validates the given patterns and builds a filter. A nil or
// empty pattern list yields a filter that excludes nothing.
func NewFilter(patterns []string) (*Filter, error) {
	normalized := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if p == "" {
			continue
		}

		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}

		normalized = append(normalized, norm.NFC.String(p))
	}

	return &Filter{patterns: normalized}, nil
}

// Excluded reports whether the relative path matches any exclude pattern.
// Safe to call on a nil filter.
func (f *Filter) Excluded(relPath string) bool {
	if f == nil || len(f.patterns) == 0 {
		return false
	}

	relPath = norm.NFC.String(relPath)

	for _, p := range f.patterns {
		if doublestar.MatchUnvalidated(p, relPath) {
			return true
		}
	}

	return false
}
