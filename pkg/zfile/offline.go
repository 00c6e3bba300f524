package zfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// OfflineProvider implements Provider for environments with no network
// access: local reads work normally, but Fetch/FetchOCI always fail. This
// still permits resolution against an already-populated cache directory,
// per spec.md's "Remote-fetch plugin" design note.
type OfflineProvider struct{}

func NewOfflineProvider() *OfflineProvider { return &OfflineProvider{} }

func (o *OfflineProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (o *OfflineProvider) Canonicalize(path string) (string, error) {
	return filepath.Abs(path)
}

func (o *OfflineProvider) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (o *OfflineProvider) ListDir(path string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(dirEntries))
	for i, e := range dirEntries {
		out[i] = Entry{Name: e.Name(), IsDir: e.IsDir()}
	}
	return out, nil
}

func (o *OfflineProvider) Fetch(ctx context.Context, ref RemoteRef) (string, error) {
	return "", fmt.Errorf("zfile: offline provider cannot fetch %s/%s@%s", ref.Host, ref.Repo, ref.Rev)
}

func (o *OfflineProvider) RemoteRefMeta(ctx context.Context, ref RemoteRef) (RefMeta, error) {
	return RefMeta{}, fmt.Errorf("zfile: offline provider cannot resolve ref metadata for %s/%s@%s", ref.Host, ref.Repo, ref.Rev)
}

func (o *OfflineProvider) FetchOCI(ctx context.Context, registry, repository, tag string) (string, error) {
	return "", fmt.Errorf("zfile: offline provider cannot fetch oci://%s/%s:%s", registry, repository, tag)
}

var _ Provider = (*OfflineProvider)(nil)
