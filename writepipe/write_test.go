package writepipe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/providers/mem"
	"github.com/nimbusfs/vfs/internal/vfsconfig"
	"github.com/nimbusfs/vfs/ops"
	"github.com/nimbusfs/vfs/writepipe"
	"github.com/nimbusfs/vfs/writequeue"
)

func newPipeline(p fs.Provider) *writepipe.Pipeline {
	lookup := func(ctx context.Context, resource fs.Resource) (fs.Provider, error) { return p, nil }
	resolve := func(ctx context.Context, resource fs.Resource) (fs.FileStat, error) { return p.Stat(ctx, resource) }
	return writepipe.New(lookup, ops.Mkdirp, resolve, writequeue.New(), vfsconfig.Default())
}

func TestWriteFileCreatesMissingAncestors(t *testing.T) {
	p := mem.New()
	pipe := newPipeline(p)

	stat, err := pipe.WriteFile(context.Background(), fs.NewResource("mem", "/a/b/c.txt"), fs.BytesInput([]byte("payload")), fs.WriteOptions{Create: true})
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), stat.Size)

	data, err := p.ReadFile(context.Background(), fs.NewResource("mem", "/a/b/c.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestWriteFileRejectsDirectoryTarget(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	require.NoError(t, p.Mkdir(ctx, fs.NewResource("mem", "/d")))

	pipe := newPipeline(p)
	_, err := pipe.WriteFile(ctx, fs.NewResource("mem", "/d"), fs.BytesInput([]byte("x")), fs.WriteOptions{})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileIsDirectory))
}

func TestWriteFileDirtyWriteGuard(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a.txt")
	require.NoError(t, p.WriteFile(ctx, target, []byte("v1"), fs.WriteOptions{}))

	stat, err := p.Stat(ctx, target)
	require.NoError(t, err)

	// A stale mtime paired with an etag that does not match the one
	// computed from (that mtime, the current size) must be rejected rather
	// than silently overwriting a newer version.
	staleMTime := stat.MTime.Add(-1)
	pipe := newPipeline(p)
	_, err = pipe.WriteFile(ctx, target, fs.BytesInput([]byte("v2")), fs.WriteOptions{MTime: &staleMTime, ETag: "stale-etag"})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileModifiedSince))
}

func TestWriteFileReadonlyProviderRejected(t *testing.T) {
	p := mem.New()
	p.SetReadonly(true)

	pipe := newPipeline(p)
	_, err := pipe.WriteFile(context.Background(), fs.NewResource("mem", "/a.txt"), fs.BytesInput([]byte("x")), fs.WriteOptions{Create: true})
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFilePermissionDenied))
}

func TestWriteFileFromReadable(t *testing.T) {
	p := mem.New()
	pipe := newPipeline(p)

	chunks := [][]byte{[]byte("hel"), []byte("lo "), []byte("world")}
	readable := &sliceReadable{chunks: chunks}

	_, err := pipe.WriteFile(context.Background(), fs.NewResource("mem", "/r.txt"), fs.ReadableInput(readable), fs.WriteOptions{Create: true})
	require.NoError(t, err)

	data, err := p.ReadFile(context.Background(), fs.NewResource("mem", "/r.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestCreateFileRejectsExistingWithoutOverwrite(t *testing.T) {
	p := mem.New()
	ctx := context.Background()
	target := fs.NewResource("mem", "/a.txt")
	require.NoError(t, p.WriteFile(ctx, target, []byte("v1"), fs.WriteOptions{}))

	pipe := newPipeline(p)
	exists := func(ctx context.Context, resource fs.Resource) bool {
		_, err := p.Stat(ctx, resource)
		return err == nil
	}

	_, err := pipe.CreateFile(ctx, target, fs.BytesInput([]byte("v2")), fs.WriteOptions{}, exists)
	require.Error(t, err)
	assert.True(t, fs.IsCode(err, fs.CodeFileModifiedSince))

	_, err = pipe.CreateFile(ctx, target, fs.BytesInput([]byte("v2")), fs.WriteOptions{Overwrite: true}, exists)
	require.NoError(t, err)
}

type sliceReadable struct {
	chunks [][]byte
	i      int
}

func (s *sliceReadable) Read() ([]byte, bool) {
	if s.i >= len(s.chunks) {
		return nil, false
	}
	chunk := s.chunks[s.i]
	s.i++
	return chunk, true
}

func (s *sliceReadable) Err() error { return nil }
