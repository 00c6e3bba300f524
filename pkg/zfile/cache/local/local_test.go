package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/architect-io/zenboard/pkg/zfile/cache"
)

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := NewStore(map[string]string{"path": tmpDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Type() != "local" {
		t.Errorf("expected type 'local', got %q", s.Type())
	}
}

func TestStore_ReadWrite(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := NewStore(map[string]string{"path": tmpDir})

	ctx := context.Background()
	key := "github.com/acme/sensors/abc123/module.star"
	data := []byte(`load("//lib.star", "Net")`)

	if err := s.Write(ctx, key, bytes.NewReader(data)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reader, err := s.Read(ctx, key)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read all failed: %v", err)
	}

	if !bytes.Equal(got, data) {
		t.Errorf("expected %s, got %s", data, got)
	}
}

func TestStore_ReadNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := NewStore(map[string]string{"path": tmpDir})

	_, err := s.Read(context.Background(), "nonexistent")
	if err != cache.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := NewStore(map[string]string{"path": tmpDir})

	ctx := context.Background()
	key := "github.com/acme/sensors/abc123/module.star"

	_ = s.Write(ctx, key, bytes.NewReader([]byte("x")))

	exists, _ := s.Exists(ctx, key)
	if !exists {
		t.Fatal("expected entry to exist")
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	exists, _ = s.Exists(ctx, key)
	if exists {
		t.Error("expected entry to not exist after delete")
	}
}

func TestStore_List(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := NewStore(map[string]string{"path": tmpDir})

	ctx := context.Background()
	_ = s.Write(ctx, "github.com/acme/a/rev1/module.star", bytes.NewReader([]byte("{}")))
	_ = s.Write(ctx, "github.com/acme/b/rev1/module.star", bytes.NewReader([]byte("{}")))
	_ = s.Write(ctx, "oci/registry.example.com/board/module.star", bytes.NewReader([]byte("{}")))

	paths, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("expected 3 paths, got %d: %v", len(paths), paths)
	}

	paths, err = s.List(ctx, "github.com")
	if err != nil {
		t.Fatalf("list with prefix failed: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("expected 2 paths, got %d: %v", len(paths), paths)
	}
}

func TestStore_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := NewStore(map[string]string{"path": tmpDir})

	ctx := context.Background()
	key := "github.com/acme/sensors/abc123"

	lock, err := s.Lock(ctx, key, cache.LockInfo{Who: "fetcher", Reason: "clone"})
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if lock == nil {
		t.Fatal("expected lock to be returned")
	}

	lockPath := filepath.Join(tmpDir, key+".lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Error("expected lock file to exist")
	}

	if err := lock.Unlock(ctx); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("expected lock file to be removed after unlock")
	}
}

func TestStore_LockConflict(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := NewStore(map[string]string{"path": tmpDir})

	ctx := context.Background()
	key := "github.com/acme/sensors/abc123"

	lock1, err := s.Lock(ctx, key, cache.LockInfo{Who: "fetcher-1"})
	if err != nil {
		t.Fatalf("first lock failed: %v", err)
	}
	defer func() { _ = lock1.Unlock(ctx) }()

	if _, err := s.Lock(ctx, key, cache.LockInfo{Who: "fetcher-2"}); err == nil {
		t.Error("expected error for conflicting lock, coalescing should have been observed instead")
	}
}

func TestStore_WriteIsIdempotentForExistingKey(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := NewStore(map[string]string{"path": tmpDir})

	ctx := context.Background()
	key := "github.com/acme/sensors/abc123/module.star"

	_ = s.Write(ctx, key, bytes.NewReader([]byte("v1")))

	// A content-addressed key names the same bytes no matter who writes it,
	// so a second Write for the same key is a no-op rather than an overwrite
	// - this is what makes the losing side of a coalesced fetch race free.
	if err := s.Write(ctx, key, bytes.NewReader([]byte("v2"))); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reader, _ := s.Read(ctx, key)
	data, _ := io.ReadAll(reader)
	reader.Close()

	if string(data) != "v1" {
		t.Errorf("expected the original v1 to survive a repeat write, got %s", data)
	}
}
