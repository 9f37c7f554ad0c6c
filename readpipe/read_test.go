package readpipe_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/providers/mem"
	"github.com/nimbusfs/vfs/internal/vfsconfig"
	"github.com/nimbusfs/vfs/readpipe"
)

func newPipeline(p fs.Provider) *readpipe.Pipeline {
	lookup := func(ctx context.Context, resource fs.Resource) (fs.Provider, error) { return p, nil }
	stat := func(ctx context.Context, resource fs.Resource) (fs.FileStat, error) { return p.Stat(ctx, resource) }
	return readpipe.New(lookup, stat, vfsconfig.Default())
}

func TestReadFileWholeFile(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	require.NoError(t, p.WriteFile(ctx, fs.NewResource("mem", "/a.txt"), []byte("hello world"), fs.WriteOptions{}))

	pipe := newPipeline(p)
	result, err := pipe.ReadFile(ctx, fs.NewResource("mem", "/a.txt"), fs.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), result.Value)
}

func TestReadFileRejectsDirectory(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	require.NoError(t, p.Mkdir(ctx, fs.NewResource("mem", "/d")))

	pipe := newPipeline(p)
	_, err := pipe.ReadFile(ctx, fs.NewResource("mem", "/d"), fs.ReadOptions{})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileIsDirectory))
}

func TestReadFileRangeRestriction(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	require.NoError(t, p.WriteFile(ctx, fs.NewResource("mem", "/a.txt"), []byte("0123456789"), fs.WriteOptions{}))

	pipe := newPipeline(p)
	pos := int64(2)
	length := int64(4)
	result, err := pipe.ReadFile(ctx, fs.NewResource("mem", "/a.txt"), fs.ReadOptions{Position: &pos, Length: &length})
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), result.Value)
}

func TestReadFileETagNotModifiedSince(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a.txt")
	require.NoError(t, p.WriteFile(ctx, target, []byte("v1"), fs.WriteOptions{}))

	stat, err := p.Stat(ctx, target)
	require.NoError(t, err)

	pipe := newPipeline(p)
	_, err = pipe.ReadFile(ctx, target, fs.ReadOptions{ETag: stat.ETag})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileNotModifiedSince))
}

func TestReadFileSizeLimit(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a.txt")
	require.NoError(t, p.WriteFile(ctx, target, []byte("0123456789"), fs.WriteOptions{}))

	pipe := newPipeline(p)
	limit := int64(5)
	_, err := pipe.ReadFile(ctx, target, fs.ReadOptions{Limits: fs.ReadLimits{Size: &limit}})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileTooLarge))
}

func TestReadFileStreamDrains(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a.txt")
	require.NoError(t, p.WriteFile(ctx, target, []byte("streamed"), fs.WriteOptions{}))

	pipe := newPipeline(p)
	streamResult, err := pipe.ReadFileStream(ctx, target, fs.ReadOptions{})
	require.NoError(t, err)
	data, err := io.ReadAll(streamResult.Value)
	require.NoError(t, err)
	assert.Equal(t, []byte("streamed"), data)
	assert.NoError(t, streamResult.Value.Close())
}

func TestReadFileEmptyFile(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/empty")
	require.NoError(t, p.WriteFile(ctx, target, nil, fs.WriteOptions{}))

	pipe := newPipeline(p)
	result, err := pipe.ReadFile(ctx, target, fs.ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Value)
	assert.NotEqual(t, fs.ETag(""), result.Stat.ETag)
}

func TestReadFilePositionPastEnd(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a.txt")
	require.NoError(t, p.WriteFile(ctx, target, []byte("short"), fs.WriteOptions{}))

	pipe := newPipeline(p)
	pos := int64(100)
	result, err := pipe.ReadFile(ctx, target, fs.ReadOptions{Position: &pos})
	require.NoError(t, err)
	assert.Empty(t, result.Value)
}

func TestReadFileZeroLength(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a.txt")
	require.NoError(t, p.WriteFile(ctx, target, []byte("content"), fs.WriteOptions{}))

	pipe := newPipeline(p)
	length := int64(0)
	pos := int64(3)
	result, err := pipe.ReadFile(ctx, target, fs.ReadOptions{Position: &pos, Length: &length})
	require.NoError(t, err)
	assert.Empty(t, result.Value)
}

func TestReadFileMissingResource(t *testing.T) {
	p := mem.New()
	pipe := newPipeline(p)
	_, err := pipe.ReadFile(context.Background(), fs.NewResource("mem", "/ghost.txt"), fs.ReadOptions{})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileNotFound))
}
