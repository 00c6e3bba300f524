// Package zfile implements the file and remote-fetch provider (spec.md
// §4.A): local filesystem access plus a pluggable fetcher that clones
// remote GitHub/GitLab refs or pulls OCI package artifacts into a
// content-addressed cache, coalescing concurrent fetches of the same key.
package zfile

import (
	"context"
	"io/fs"
)

// RemoteRef is a normalized (host, repo, rev) remote reference.
type RemoteRef struct {
	Host string
	Repo string
	Rev  string
}

// Key is the content-addressed cache key for this ref.
func (r RemoteRef) Key() string {
	rev := r.Rev
	if rev == "" {
		rev = "HEAD"
	}
	return r.Host + "/" + r.Repo + "/" + rev
}

// RefMeta reports what a Fetcher learned about a ref during fetch:
// whether it's a stable (tag/commit) or unstable (branch/HEAD) reference,
// and the commit it actually resolved to.
type RefMeta struct {
	Stable         bool
	ResolvedCommit string
}

// Entry is one directory listing result from Provider.ListDir.
type Entry struct {
	Name  string
	IsDir bool
}

// Provider is the file & remote-fetch capability object spec.md §4.A
// describes: local reads plus a pluggable remote fetch.
type Provider interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Canonicalize(path string) (string, error)
	Exists(path string) bool
	ListDir(path string) ([]Entry, error)

	// Fetch ensures ref's content is present in the cache and returns its
	// on-disk directory. Concurrent Fetch calls for the same ref coalesce
	// (spec.md §5).
	Fetch(ctx context.Context, ref RemoteRef) (string, error)

	// RemoteRefMeta reports stability/resolved-commit for ref, populated
	// as a side effect of (or independently of) Fetch.
	RemoteRefMeta(ctx context.Context, ref RemoteRef) (RefMeta, error)

	// FetchOCI pulls an OCI package artifact into the cache and returns
	// its on-disk directory — the supplemented distribution mechanism
	// (SPEC_FULL.md §3), parallel to Fetch for git-hosted refs.
	FetchOCI(ctx context.Context, registry, repository, tag string) (string, error)
}

// LocalProvider is the os.DirFS-backed implementation of the local-only
// parts of Provider; embedding it lets a Fetcher implementation focus only
// on the remote half.
type LocalProvider struct {
	FS fs.FS
}
