package loadspec

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "pcb.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write pcb.toml: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[workspace]
name = "acme"
members = ["boards/main"]

[packages]
sensors = "@github/acme/sensors:v1"
`)

	m, err := LoadManifest(filepath.Join(dir, "pcb.toml"))
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	if m.Workspace.Name != "acme" {
		t.Errorf("Workspace.Name = %q, want %q", m.Workspace.Name, "acme")
	}
	if m.Packages["sensors"] != "@github/acme/sensors:v1" {
		t.Errorf("Packages[\"sensors\"] = %q, want %q", m.Packages["sensors"], "@github/acme/sensors:v1")
	}
}

func TestFindManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[workspace]\nname = \"acme\"\n")

	nested := filepath.Join(root, "boards", "main")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	m, err := FindManifest(nested)
	if err != nil {
		t.Fatalf("FindManifest returned error: %v", err)
	}
	if m.Dir != root {
		t.Errorf("Dir = %q, want %q", m.Dir, root)
	}
}

func TestAliasSpanFor(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[workspace]\nname = \"acme\"\n\n[packages]\nsensors = \"@github/acme/sensors:v1\"\n")

	span, ok := AliasSpanFor(path, "sensors")
	if !ok {
		t.Fatal("AliasSpanFor returned ok=false for a present alias")
	}
	if span.Line != 5 {
		t.Errorf("Line = %d, want 5", span.Line)
	}

	if _, ok := AliasSpanFor(path, "missing"); ok {
		t.Error("AliasSpanFor returned ok=true for an absent alias")
	}
}
