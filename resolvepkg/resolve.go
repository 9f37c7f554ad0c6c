// Package resolvepkg implements the stat resolver / tree walker: it turns
// a provider Stat plus recursive ReadDir calls into a FileStat tree,
// bounded by a prefix trie of targets of interest and a single-child
// heuristic.
package resolvepkg

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/vfslog"
)

// ProviderLookup activates and returns the provider for a resource. It is
// satisfied by the method value (*registry.Registry).WithProvider; resolvepkg depends on the narrow
// function rather than the whole registry type to avoid an import cycle
// with the top-level service package.
type ProviderLookup func(ctx context.Context, resource fs.Resource) (fs.Provider, error)

// Resolver implements resolve / resolveAll / exists.
type Resolver struct {
	lookup      ProviderLookup
	concurrency int
}

// New constructs a Resolver. concurrency bounds how many children of one
// directory are stat'd at once during a walk; 0 or
// negative means unbounded (errgroup.SetLimit is skipped).
func New(lookup ProviderLookup, concurrency int) *Resolver {
	return &Resolver{lookup: lookup, concurrency: concurrency}
}

// Resolve returns the FileStat tree rooted at resource.
func (r *Resolver) Resolve(ctx context.Context, resource fs.Resource, opts fs.ResolveOptions) (fs.FileStat, error) {
	provider, err := r.lookup(ctx, resource)
	if err != nil {
		return fs.FileStat{}, err
	}

	key := fs.CanonicalKey(provider.Capabilities(), resource)
	targets := newTrie()
	targets.insert(key)
	for _, extra := range opts.ResolveTo {
		targets.insert(fs.CanonicalKey(provider.Capabilities(), extra))
	}

	stat, err := provider.Stat(ctx, resource)
	if err != nil {
		return fs.FileStat{}, fs.FromProviderError(resource, err)
	}

	if stat.IsDirectory {
		if err := r.expand(ctx, provider, &stat, targets, opts); err != nil {
			return fs.FileStat{}, err
		}
	}
	return stat, nil
}

// expand recursively fills in parent.Children for a directory stat,
// descending only where the trie has interest at or beneath the
// directory, or ResolveSingleChildDescendants applies.
func (r *Resolver) expand(ctx context.Context, provider fs.Provider, parent *fs.FileStat, targets *trie, opts fs.ResolveOptions) error {
	entries, err := provider.ReadDir(ctx, parent.Resource)
	if err != nil {
		// A directory listing failure yields an empty children set, not a
		// failed resolve; only the top-level Stat call can fail resolve
		// outright.
		vfslog.CoalescedError(parent.Resource, "readdir", err)
		parent.Children = nil
		return nil
	}

	children := make([]fs.FileStat, len(entries))
	caps := provider.Capabilities()

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	singleChild := len(entries) == 1

	for i, entry := range entries {
		i, entry := i, entry
		childResource := parent.Resource.Join(entry.Name)
		childKey := fs.CanonicalKey(caps, childResource)
		shouldDescend := (entry.IsDirectory) && (targets.hasAtOrBeneath(childKey) || (opts.ResolveSingleChildDescendants && singleChild))

		if !opts.ResolveMetadata && !shouldDescend {
			children[i] = fs.FileStat{
				Resource:    childResource,
				Name:        entry.Name,
				IsFile:      entry.IsFile,
				IsDirectory: entry.IsDirectory,
				IsSymbolicLink: entry.IsSymbolicLink,
			}
			continue
		}

		g.Go(func() error {
			childStat, statErr := provider.Stat(gctx, childResource)
			if statErr != nil {
				// Per-child stat errors are logged and coalesced out: the
				// child is dropped from the result rather than failing
				// the whole resolve.
				vfslog.CoalescedError(childResource, "stat", statErr)
				return nil
			}
			if childStat.IsDirectory && shouldDescend {
				if err := r.expand(gctx, provider, &childStat, targets, opts); err != nil {
					return err
				}
			}
			children[i] = childStat
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	out := children[:0]
	for _, c := range children {
		if c.Name != "" {
			out = append(out, c)
		}
	}
	parent.Children = out
	return nil
}

// ResolveResult is one entry of a ResolveAll call.
type ResolveResult struct {
	Stat    fs.FileStat
	Success bool
}

// ResolveAll runs Resolve independently for each of entries; a failure on
// one never propagates to the others or to the caller.
func (r *Resolver) ResolveAll(ctx context.Context, entries []fs.Resource, opts fs.ResolveOptions) []ResolveResult {
	results := make([]ResolveResult, len(entries))
	for i, resource := range entries {
		stat, err := r.Resolve(ctx, resource, opts)
		if err != nil {
			vfslog.CoalescedError(resource, "resolveAll", err)
			results[i] = ResolveResult{Success: false}
			continue
		}
		results[i] = ResolveResult{Stat: stat, Success: true}
	}
	return results
}

// Exists reports whether a Stat call on resource succeeds at all.
func (r *Resolver) Exists(ctx context.Context, resource fs.Resource) bool {
	provider, err := r.lookup(ctx, resource)
	if err != nil {
		return false
	}
	_, err = provider.Stat(ctx, resource)
	return err == nil
}
