package ops

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nimbusfs/vfs/fs"
)

// Mkdirp walks upward from directory via Dirname until it finds an
// existing ancestor directory (success), an existing non-directory
// ancestor (failure), or a provider error other than file-not-found
// (propagated). It then walks back down creating each missing segment.
func Mkdirp(ctx context.Context, provider fs.Provider, directory fs.Resource) error {
	var missing []string
	current := directory

	for {
		stat, err := provider.Stat(ctx, current)
		if err == nil {
			if !stat.IsDirectory {
				return fs.NewError(fs.CodeFileNotDirectory, current, "ancestor exists and is not a directory", nil)
			}
			break
		}
		if !errors.Is(err, fs.ErrFileNotFound) {
			return fs.FromProviderError(current, err)
		}

		parent := current.Dirname()
		if parent.Equal(current) {
			// Reached the root without finding an existing ancestor; treat
			// the root itself as implicitly present.
			break
		}
		missing = append(missing, current.Basename())
		current = parent
	}

	for i := len(missing) - 1; i >= 0; i-- {
		current = current.Join(missing[i])
		if err := provider.Mkdir(ctx, current); err != nil {
			return fs.FromProviderError(current, err)
		}
	}
	return nil
}

// CreateFolder wraps Mkdirp for a single target directory and returns
// nil once creation (or pre-existence) is confirmed.
func CreateFolder(ctx context.Context, provider fs.Provider, resource fs.Resource) error {
	stat, err := provider.Stat(ctx, resource)
	if err == nil {
		if stat.IsDirectory {
			return nil
		}
		return fs.NewError(fs.CodeFileNotDirectory, resource, "resource exists and is not a directory", nil)
	}
	if !errors.Is(err, fs.ErrFileNotFound) {
		return fs.FromProviderError(resource, err)
	}
	return Mkdirp(ctx, provider, resource)
}
