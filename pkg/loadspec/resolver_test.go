package loadspec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/architect-io/zenboard/pkg/zfile"
)

// fakeProvider is an in-memory stand-in for zfile.Provider, letting resolver
// tests exercise alias/cycle/unstable-ref logic without a real fetch.
type fakeProvider struct {
	zfile.OfflineProvider
	fetchDir string
	stable   map[string]bool
}

func (f *fakeProvider) Fetch(ctx context.Context, ref zfile.RemoteRef) (string, error) {
	return f.fetchDir, nil
}

func (f *fakeProvider) RemoteRefMeta(ctx context.Context, ref zfile.RemoteRef) (zfile.RefMeta, error) {
	return zfile.RefMeta{Stable: f.stable[ref.Key()]}, nil
}

func newWorkspace(t *testing.T, manifestBody string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pcb.toml"), []byte(manifestBody), 0644); err != nil {
		t.Fatalf("failed to write pcb.toml: %v", err)
	}
	return dir
}

func TestResolvePathSpec(t *testing.T) {
	dir := newWorkspace(t, "[workspace]\nname = \"acme\"\n")
	sibling := filepath.Join(dir, "sibling.zen")
	if err := os.WriteFile(sibling, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write sibling.zen: %v", err)
	}

	r := NewResolver(&fakeProvider{})
	resolved, d, err := r.Resolve(context.Background(), "./sibling.zen", filepath.Join(dir, "main.zen"), false)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if d != nil {
		t.Errorf("local path spec produced a diagnostic, want none: %+v", d)
	}
	if resolved.AbsPath != sibling {
		t.Errorf("AbsPath = %q, want %q", resolved.AbsPath, sibling)
	}
}

func TestResolveUnresolvedPath(t *testing.T) {
	dir := newWorkspace(t, "[workspace]\nname = \"acme\"\n")

	r := NewResolver(&fakeProvider{})
	_, _, err := r.Resolve(context.Background(), "./missing.zen", filepath.Join(dir, "main.zen"), false)
	if err == nil {
		t.Fatal("Resolve should fail for a nonexistent path with allow_not_exist=false")
	}
}

func TestResolveAliasCycle(t *testing.T) {
	dir := newWorkspace(t, "[packages]\na = \"@b\"\nb = \"@a\"\n")

	r := NewResolver(&fakeProvider{})
	if err := r.SetWorkspaceRoot(dir); err != nil {
		t.Fatalf("SetWorkspaceRoot returned error: %v", err)
	}

	_, _, err := r.Resolve(context.Background(), "@a", filepath.Join(dir, "main.zen"), true)
	if err == nil {
		t.Fatal("Resolve should detect the a -> b -> a alias cycle")
	}
}

func TestResolveUnstableRefDiagnostic(t *testing.T) {
	dir := newWorkspace(t, "[packages]\nsensors = \"@github/acme/sensors\"\n")
	cacheDir := t.TempDir()

	fp := &fakeProvider{fetchDir: cacheDir, stable: map[string]bool{"github.com/acme/sensors/HEAD": false}}
	r := NewResolver(fp)
	if err := r.SetWorkspaceRoot(dir); err != nil {
		t.Fatalf("SetWorkspaceRoot returned error: %v", err)
	}

	_, d, err := r.Resolve(context.Background(), "@sensors", filepath.Join(dir, "main.zen"), true)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if d == nil {
		t.Fatal("expected an unstable-reference warning diagnostic, got nil")
	}
	if d.Severity != 0 { // SeverityWarning
		t.Errorf("Severity = %v, want Warning", d.Severity)
	}
	if d.Child == nil {
		t.Error("expected a child diagnostic pointing at the pcb.toml alias span")
	}
}
