package loadspec

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/architect-io/zenboard/pkg/diag"
	zerr "github.com/architect-io/zenboard/pkg/errors"
	"github.com/architect-io/zenboard/pkg/zfile"
)

// Resolved is the result of resolving a load spec: the absolute path a
// caller should read, plus the canonical spec string tracking records
// against it.
type Resolved struct {
	AbsPath       string
	CanonicalSpec string
}

// Tracked is one entry in a Tracking resolver's history (spec.md §4.B
// "Tracking"), recording every resolved path plus its canonical spec so
// external vendor/release collaborators can enumerate exactly what a build
// touched.
type Tracked struct {
	Spec          string
	CanonicalSpec string
	AbsPath       string
	remoteDir     string // cache dir this AbsPath lives under, "" if local
}

// Resolver implements resolve_spec (spec.md §4.B) against a Provider for
// filesystem/remote access, a Manifest for workspace/package alias lookups,
// and emits unstable-reference diagnostics as a side effect of Resolve.
type Resolver struct {
	provider zfile.Provider

	workspaceManifest *Manifest
	manifests         map[string]*Manifest // dir -> nearest ancestor manifest, memoized

	tracked []Tracked
}

func NewResolver(provider zfile.Provider) *Resolver {
	return &Resolver{provider: provider, manifests: make(map[string]*Manifest)}
}

// SetWorkspaceRoot loads and pins the manifest every subsequent alias and
// WorkspacePath resolution is resolved against — callers do this once per
// build, pointed at the workspace's root directory.
func (r *Resolver) SetWorkspaceRoot(dir string) error {
	m, err := FindManifest(dir)
	if err != nil {
		return err
	}
	r.workspaceManifest = m
	return nil
}

// Tracked returns every resolution recorded so far, the data backing the
// "vendor" and "release" collaborators.
func (r *Resolver) Tracked() []Tracked {
	out := make([]Tracked, len(r.tracked))
	copy(out, r.tracked)
	return out
}

// Resolve implements resolve_spec(spec, current_file) → abs_path, the
// five-step algorithm from spec.md §4.B, returning a diagnostic alongside
// any error it produces (nil diagnostic on an unremarkable resolution).
func (r *Resolver) Resolve(ctx context.Context, raw, currentFile string, allowNotExist bool) (Resolved, *diag.Diagnostic, error) {
	spec, err := Parse(raw)
	if err != nil {
		return Resolved{}, nil, err
	}

	// Step 1: canonical spec derivation. A relative Path spec whose current
	// file lives inside a cached remote directory is rewritten so
	// cross-file loads inside a vendored package stay within the cache
	// instead of falling through to the host filesystem.
	if spec.Kind == KindPath && !filepath.IsAbs(spec.Path) {
		if rewritten, ok := r.rewriteWithinRemote(spec, currentFile); ok {
			spec = rewritten
		}
	}

	spec, aliasChain, err := r.resolveAlias(spec)
	if err != nil {
		return Resolved{}, nil, err
	}

	var (
		absPath   string
		remoteDir string
	)

	switch spec.Kind {
	case KindGithub, KindGitlab:
		dir, err := r.provider.Fetch(ctx, toRemoteRef(spec))
		if err != nil {
			return Resolved{}, nil, zerr.FetchFailed(spec.String(), err)
		}
		remoteDir = dir
		absPath = filepath.Join(dir, spec.Subpath)

	case KindOCIPackage:
		dir, err := r.provider.FetchOCI(ctx, spec.Registry, spec.Repository, spec.Tag)
		if err != nil {
			return Resolved{}, nil, zerr.FetchFailed(spec.String(), err)
		}
		remoteDir = dir
		absPath = filepath.Join(dir, spec.Subpath)

	case KindWorkspacePath:
		manifest, err := r.nearestManifest(filepath.Dir(currentFile))
		if err != nil {
			return Resolved{}, nil, err
		}
		absPath = filepath.Join(manifest.Dir, spec.Path)

	case KindPath:
		absPath = filepath.Join(filepath.Dir(currentFile), spec.Path)

	default:
		return Resolved{}, nil, fmt.Errorf("loadspec: unhandled spec kind for %q", spec.String())
	}

	if !allowNotExist && !r.provider.Exists(absPath) {
		return Resolved{}, nil, zerr.Unresolved(raw)
	}

	canonical := spec.String()
	r.tracked = append(r.tracked, Tracked{Spec: raw, CanonicalSpec: canonical, AbsPath: absPath, remoteDir: remoteDir})

	d, err := r.unstableRefDiagnostic(ctx, spec, aliasChain, currentFile)
	if err != nil {
		return Resolved{}, nil, err
	}

	return Resolved{AbsPath: absPath, CanonicalSpec: canonical}, d, nil
}

// rewriteWithinRemote finds the tracked entry whose resolved path is an
// ancestor of currentFile and, if that entry lives under a remote cache
// directory, rewrites spec's relative path into an equivalent remote spec
// rooted at the same (host, repo, rev) — spec.md §4.B step 1's "canonical
// spec derivation".
func (r *Resolver) rewriteWithinRemote(spec Spec, currentFile string) (Spec, bool) {
	for i := len(r.tracked) - 1; i >= 0; i-- {
		t := r.tracked[i]
		if t.remoteDir == "" {
			continue
		}
		if !strings.HasPrefix(currentFile, t.remoteDir) {
			continue
		}
		originSpec, err := Parse(t.Spec)
		if err != nil || (originSpec.Kind != KindGithub && originSpec.Kind != KindGitlab) {
			continue
		}
		rel, err := filepath.Rel(filepath.Dir(currentFile), filepath.Join(filepath.Dir(currentFile), spec.Path))
		if err != nil {
			continue
		}
		withinCache, err := filepath.Rel(t.remoteDir, filepath.Join(filepath.Dir(currentFile), rel))
		if err != nil {
			continue
		}
		rewritten := originSpec
		rewritten.Subpath = filepath.Clean(withinCache)
		return rewritten, true
	}
	return Spec{}, false
}

// resolveAlias follows `[packages]` alias indirection transitively
// (spec.md §4.B "Package alias resolution") until a concrete Path/Github/
// Gitlab/OCIPackage spec is reached, detecting cycles the way dependency
// graph resolution elsewhere in this project does: a visited set per call.
func (r *Resolver) resolveAlias(spec Spec) (Spec, []string, error) {
	if spec.Kind != KindPackage {
		return spec, nil, nil
	}
	if r.workspaceManifest == nil {
		return Spec{}, nil, fmt.Errorf("loadspec: no workspace manifest set (call SetWorkspaceRoot)")
	}

	visiting := map[string]bool{}
	var chain []string
	cur := spec

	for cur.Kind == KindPackage {
		if visiting[cur.Package] {
			chain = append(chain, cur.Package)
			return Spec{}, nil, zerr.Cycle(chain)
		}
		visiting[cur.Package] = true
		chain = append(chain, cur.Package)

		target, ok := r.workspaceManifest.Packages[cur.Package]
		if !ok {
			return Spec{}, nil, fmt.Errorf("loadspec: unknown package alias %q", cur.Package)
		}

		next, err := Parse(target)
		if err != nil {
			return Spec{}, nil, fmt.Errorf("loadspec: alias %q has malformed target %q: %w", cur.Package, target, err)
		}
		// Carry forward the original spec's subpath/rev so "@alias/sub"
		// still reaches the right file once the alias itself is resolved.
		if next.Subpath == "" {
			next.Subpath = cur.Subpath
		} else if cur.Subpath != "" {
			next.Subpath = filepath.Join(next.Subpath, cur.Subpath)
		}
		// A package spec keeps its ":rev" in Tag.
		switch next.Kind {
		case KindGithub, KindGitlab:
			if next.Rev == "" {
				next.Rev = cur.Tag
			}
		case KindPackage, KindOCIPackage:
			if next.Tag == "" {
				next.Tag = cur.Tag
			}
		}
		cur = next
	}

	return cur, chain, nil
}

func (r *Resolver) nearestManifest(dir string) (*Manifest, error) {
	if m, ok := r.manifests[dir]; ok {
		return m, nil
	}
	m, err := FindManifest(dir)
	if err != nil {
		return nil, err
	}
	r.manifests[dir] = m
	return m, nil
}

// unstableRefDiagnostic implements spec.md §4.B's "Unstable-reference
// detection": a remote spec pinned to a branch or HEAD (not a tag/commit)
// warns at the load call site, with a child diagnostic pointing at the
// alias's value in pcb.toml when the reference flowed through one.
func (r *Resolver) unstableRefDiagnostic(ctx context.Context, spec Spec, aliasChain []string, currentFile string) (*diag.Diagnostic, error) {
	if spec.Kind != KindGithub && spec.Kind != KindGitlab {
		return nil, nil
	}

	meta, err := r.provider.RemoteRefMeta(ctx, toRemoteRef(spec))
	if err != nil {
		return nil, err
	}
	if meta.Stable {
		return nil, nil
	}

	rootErr := zerr.UnstableRef(spec.String())
	d := diag.New(rootErr.Message, diag.SeverityWarning, currentFile).WithSourceError(rootErr)

	if len(aliasChain) > 0 && r.workspaceManifest != nil {
		alias := aliasChain[0]
		if span, ok := AliasSpanFor(filepath.Join(r.workspaceManifest.Dir, "pcb.toml"), alias); ok {
			child := diag.New(
				fmt.Sprintf("alias %q defined here resolves to an unstable reference", alias),
				diag.SeverityWarning,
				span.Path,
			).WithSpan(&diag.Span{Path: span.Path, StartLine: span.Line, StartCol: span.Col, EndLine: span.Line, EndCol: span.Col})
			d = d.WithChild(child)
		}
	}

	return d, nil
}
