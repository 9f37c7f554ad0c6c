package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/vfs/fs"
)

func TestParseResource(t *testing.T) {
	r, err := fs.ParseResource("mem://home/docs/report.txt?v=2#section")
	require.NoError(t, err)
	assert.Equal(t, "mem", r.Scheme)
	assert.Equal(t, "home", r.Authority)
	assert.Equal(t, "/docs/report.txt", r.Path)
	assert.Equal(t, "v=2", r.Query)
	assert.Equal(t, "section", r.Fragment)
}

func TestResourceStringRoundTrip(t *testing.T) {
	r := fs.NewResource("disk", "/a/b/c.txt")
	assert.Equal(t, "disk:///a/b/c.txt", r.String())
	other := fs.NewResource("disk", "/a/b/c.txt")
	assert.True(t, r.Equal(other))
}

func TestResourceDirnameBasename(t *testing.T) {
	r := fs.NewResource("mem", "/a/b/c.txt")
	assert.Equal(t, "c.txt", r.Basename())
	assert.Equal(t, "/a/b", r.Dirname().Path)
	assert.Equal(t, "/", fs.NewResource("mem", "/top").Dirname().Path)
}

func TestResourceJoin(t *testing.T) {
	r := fs.NewResource("mem", "/a")
	assert.Equal(t, "/a/b", r.Join("b").Path)
	assert.Equal(t, "/a/b", r.Join("/b").Path)
}

func TestResourceIsAncestorOrEqual(t *testing.T) {
	a := fs.NewResource("mem", "/a")
	b := fs.NewResource("mem", "/a/b/c")
	assert.True(t, a.IsAncestorOrEqual(b))
	assert.True(t, a.IsAncestorOrEqual(a))
	assert.False(t, b.IsAncestorOrEqual(a))

	other := fs.NewResource("disk", "/a/b/c")
	assert.False(t, a.IsAncestorOrEqual(other))

	prefixButNotSegment := fs.NewResource("mem", "/abc")
	assert.False(t, a.IsAncestorOrEqual(prefixButNotSegment))
}

func TestResourceIsAbsolute(t *testing.T) {
	assert.True(t, fs.NewResource("mem", "/a").IsAbsolute())
	assert.False(t, fs.NewResource("mem", "a").IsAbsolute())
}
