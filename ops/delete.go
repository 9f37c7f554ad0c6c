// Package ops implements delete and stepwise directory creation: the two
// operations that climb or walk a path rather than dispatching a single
// provider call.
package ops

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nimbusfs/vfs/fs"
)

// Delete implements del: an existence check, a non-empty-directory guard
// under non-recursive deletion, and a trash-capability guard, before
// delegating to the provider.
func Delete(ctx context.Context, provider fs.Provider, resource fs.Resource, opts fs.DeleteOptions) error {
	if opts.UseTrash && !fs.HasTrash(provider.Capabilities()) {
		return fs.NewError(fs.CodeUnknown, resource, "provider does not support trash", nil)
	}

	stat, err := provider.Stat(ctx, resource)
	if err != nil {
		if errors.Is(err, fs.ErrFileNotFound) {
			return fs.NewError(fs.CodeFileNotFound, resource, "resource does not exist", err)
		}
		return fs.FromProviderError(resource, err)
	}

	if !opts.Recursive && stat.IsDirectory {
		entries, err := provider.ReadDir(ctx, resource)
		if err != nil {
			return fs.FromProviderError(resource, err)
		}
		if len(entries) > 0 {
			return fs.NewError(fs.CodeUnknown, resource, "refusing to delete non-empty directory without recursive", nil)
		}
	}

	if err := provider.Delete(ctx, resource, opts); err != nil {
		return fs.FromProviderError(resource, err)
	}
	return nil
}
