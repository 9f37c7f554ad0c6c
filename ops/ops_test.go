package ops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/providers/mem"
	"github.com/nimbusfs/vfs/ops"
)

func TestMkdirpCreatesEveryMissingAncestor(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a/b/c")

	require.NoError(t, ops.Mkdirp(ctx, p, target))

	stat, err := p.Stat(ctx, target)
	require.NoError(t, err)
	assert.True(t, stat.IsDirectory)

	mid, err := p.Stat(ctx, fs.NewResource("mem", "/a/b"))
	require.NoError(t, err)
	assert.True(t, mid.IsDirectory)
}

func TestMkdirpNoopWhenAlreadyExists(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a")
	require.NoError(t, p.Mkdir(ctx, target))
	assert.NoError(t, ops.Mkdirp(ctx, p, target))
}

func TestMkdirpFailsOnNonDirectoryAncestor(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	require.NoError(t, p.WriteFile(ctx, fs.NewResource("mem", "/a"), []byte("x"), fs.WriteOptions{}))

	err := ops.Mkdirp(ctx, p, fs.NewResource("mem", "/a/b"))
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileNotDirectory))
}

func TestCreateFolderIdempotent(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/x/y")
	require.NoError(t, ops.CreateFolder(ctx, p, target))
	require.NoError(t, ops.CreateFolder(ctx, p, target))
}

func TestDeleteRejectsNonEmptyDirectoryWithoutRecursive(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	dir := fs.NewResource("mem", "/d")
	require.NoError(t, p.Mkdir(ctx, dir))
	require.NoError(t, p.WriteFile(ctx, dir.Join("f.txt"), []byte("x"), fs.WriteOptions{}))

	err := ops.Delete(ctx, p, dir, fs.DeleteOptions{})
	require.Error(t, err)

	require.NoError(t, ops.Delete(ctx, p, dir, fs.DeleteOptions{Recursive: true}))
	_, err = p.Stat(ctx, dir)
	assert.ErrorIs(t, err, fs.ErrFileNotFound)
}

func TestDeleteMissingResourceFails(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	err := ops.Delete(ctx, p, fs.NewResource("mem", "/ghost"), fs.DeleteOptions{})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileNotFound))
}

func TestDeleteUsesTrashWhenSupported(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	f := fs.NewResource("mem", "/f.txt")
	require.NoError(t, p.WriteFile(ctx, f, []byte("x"), fs.WriteOptions{}))
	require.NoError(t, ops.Delete(ctx, p, f, fs.DeleteOptions{UseTrash: true}))
	_, err := p.Stat(ctx, f)
	assert.ErrorIs(t, err, fs.ErrFileNotFound)
}

func TestDeleteRecursiveRemovesWholeTree(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	require.NoError(t, ops.Mkdirp(ctx, p, fs.NewResource("mem", "/a/b")))
	require.NoError(t, p.WriteFile(ctx, fs.NewResource("mem", "/a/b/f.txt"), []byte("x"), fs.WriteOptions{}))

	require.NoError(t, ops.Delete(ctx, p, fs.NewResource("mem", "/a"), fs.DeleteOptions{Recursive: true}))
	_, err := p.Stat(ctx, fs.NewResource("mem", "/a"))
	assert.ErrorIs(t, err, fs.ErrFileNotFound)
}
