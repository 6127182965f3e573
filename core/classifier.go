package core

import (
	"path"
	"strings"
)

// OpenPathSet is an ordered set of path prefixes exempt from authentication.
// A path p is open iff p equals a prefix or starts with prefix + "/".
type OpenPathSet struct {
	prefixes []string
}

// NewOpenPathSet normalizes and de-duplicates prefixes, keeping their order.
func NewOpenPathSet(prefixes ...string) *OpenPathSet {
	s := &OpenPathSet{}
	seen := make(map[string]struct{}, len(prefixes))
	for _, p := range prefixes {
		if strings.TrimSpace(p) == "" {
			continue
		}
		p = NormalizePath(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		s.prefixes = append(s.prefixes, p)
	}
	return s
}

// Prefixes returns a copy of the configured prefixes.
func (s *OpenPathSet) Prefixes() []string {
	return append([]string(nil), s.prefixes...)
}

// IsOpen reports whether a normalized path needs no authentication.
// Matching is case-sensitive and segment-exact: /open matches /open and /open/x, not /openish.
func (s *OpenPathSet) IsOpen(p string) bool {
	for _, prefix := range s.prefixes {
		if p == prefix {
			return true
		}
		if prefix == "/" {
			continue
		}
		if strings.HasPrefix(p, prefix) && len(p) > len(prefix) && p[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// NormalizePath strips any query, cleans the path, and guarantees a leading
// slash and no trailing slash (except for the root itself).
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

// RequestPath returns the path a router will dispatch on, minus one trailing
// slash. ok is false for a path that is not already clean (dot segments,
// repeated slashes, no leading slash); such a path must never be treated as open.
func RequestPath(p string) (string, bool) {
	if p == "" || p[0] != '/' {
		return p, false
	}
	if len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p, path.Clean(p) == p
}
