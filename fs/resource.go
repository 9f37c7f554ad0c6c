// Package fs defines the data model and provider contract of the virtual
// filesystem core: resource identifiers, capability bits, file stats, the
// read/write/watch option types, and the error taxonomy that every pipeline
// package in this module builds on.
package fs

import (
	"fmt"
	"net/url"
	"strings"
)

// Resource is an opaque scheme://authority/path?query#fragment identifier.
// It is immutable once constructed; every field access is a plain read.
type Resource struct {
	Scheme    string
	Authority string
	Path      string
	Query     string
	Fragment  string
}

// ParseResource parses a raw URI string into a Resource.
func ParseResource(raw string) (Resource, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Resource{}, fmt.Errorf("parse resource %q: %w", raw, err)
	}
	return Resource{
		Scheme:    u.Scheme,
		Authority: u.Host,
		Path:      u.Path,
		Query:     u.RawQuery,
		Fragment:  u.Fragment,
	}, nil
}

// NewResource builds a Resource with no authority, query, or fragment.
func NewResource(scheme, path string) Resource {
	return Resource{Scheme: scheme, Path: path}
}

// String renders the canonical string form of the resource. Two resources
// are equivalent iff their String() forms match (modulo the case-folding a
// provider's PathCaseSensitive bit applies; see CanonicalKey).
func (r Resource) String() string {
	var b strings.Builder
	b.WriteString(r.Scheme)
	b.WriteString("://")
	b.WriteString(r.Authority)
	b.WriteString(r.Path)
	if r.Query != "" {
		b.WriteByte('?')
		b.WriteString(r.Query)
	}
	if r.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(r.Fragment)
	}
	return b.String()
}

// Equal reports whether two resources stringify identically.
func (r Resource) Equal(other Resource) bool {
	return r.String() == other.String()
}

// WithPath returns a copy of r with Path replaced.
func (r Resource) WithPath(path string) Resource {
	r.Path = path
	return r
}

// Dirname returns the resource with Path set to its parent directory,
// using "/" as the path separator regardless of platform (paths here are
// URI paths, not filesystem paths).
func (r Resource) Dirname() Resource {
	return r.WithPath(dirname(r.Path))
}

// Basename returns the final path segment.
func (r Resource) Basename() string {
	return basename(r.Path)
}

// Join appends a child segment to the resource's path.
func (r Resource) Join(child string) Resource {
	p := strings.TrimSuffix(r.Path, "/") + "/" + strings.TrimPrefix(child, "/")
	return r.WithPath(p)
}

// IsAbsolute reports whether the resource's path begins with "/".
func (r Resource) IsAbsolute() bool {
	return strings.HasPrefix(r.Path, "/")
}

func dirname(p string) string {
	p = strings.TrimSuffix(p, "/")
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

func basename(p string) string {
	p = strings.TrimSuffix(p, "/")
	i := strings.LastIndexByte(p, '/')
	return p[i+1:]
}

// IsAncestorOrEqual reports whether r is ancestor.Path is a prefix of
// child.Path on a "/"-segment boundary (or equal), within the same scheme
// and authority. Used by the move/copy engine's self-containment checks.
func (r Resource) IsAncestorOrEqual(child Resource) bool {
	if r.Scheme != child.Scheme || r.Authority != child.Authority {
		return false
	}
	a := strings.TrimSuffix(r.Path, "/")
	b := strings.TrimSuffix(child.Path, "/")
	if a == b {
		return true
	}
	return strings.HasPrefix(b, a+"/")
}
