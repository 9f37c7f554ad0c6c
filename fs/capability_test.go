package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusfs/vfs/fs"
)

func TestCapabilityProbes(t *testing.T) {
	c := fs.FileReadWrite | fs.Trash
	assert.True(t, fs.HasUnbufferedReadWrite(c))
	assert.True(t, fs.HasTrash(c))
	assert.False(t, fs.HasPositionalIO(c))
	assert.False(t, fs.HasReadStream(c))
	assert.False(t, fs.HasFolderCopy(c))
	assert.False(t, fs.IsCaseSensitive(c))
	assert.False(t, fs.IsReadonly(c))
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "none", fs.Capability(0).String())
	c := fs.FileReadWrite | fs.Trash
	assert.Equal(t, "FileReadWrite|Trash", c.String())
}
