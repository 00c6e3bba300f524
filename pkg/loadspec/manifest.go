package loadspec

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Manifest is the parsed pcb.toml workspace manifest (spec.md §6).
type Manifest struct {
	Workspace WorkspaceTable    `mapstructure:"workspace"`
	Packages  map[string]string `mapstructure:"packages"`
	Board     BoardTable        `mapstructure:"board"`

	// Dir is the directory containing the manifest, used to resolve
	// WorkspacePath specs and to build the alias span lookup.
	Dir string `mapstructure:"-"`
}

type WorkspaceTable struct {
	Name          string   `mapstructure:"name"`
	Members       []string `mapstructure:"members"`
	DefaultBoard  string   `mapstructure:"default_board"`
}

type BoardTable struct {
	Name        string `mapstructure:"name"`
	Path        string `mapstructure:"path"`
	Description string `mapstructure:"description"`
}

// LoadManifest reads and parses a pcb.toml file using viper's TOML mode —
// the same config-loading idiom this project uses everywhere else, just
// pointed at a single explicit file instead of the usual search path.
func LoadManifest(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loadspec: failed to read %s: %w", path, err)
	}

	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("loadspec: failed to parse %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)

	return &m, nil
}

// FindManifest walks upward from dir looking for the nearest ancestor
// containing pcb.toml, the workspace-root lookup spec.md §4.B's Resolution
// step 3 and §4.C's "nearest ancestor" host both depend on.
func FindManifest(dir string) (*Manifest, error) {
	cur := dir
	for {
		candidate := filepath.Join(cur, "pcb.toml")
		if _, err := os.Stat(candidate); err == nil {
			return LoadManifest(candidate)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("loadspec: no pcb.toml found above %s", dir)
		}
		cur = parent
	}
}

// AliasSpan is a rough source location for an alias value inside pcb.toml,
// used only to give the unstable-reference child diagnostic somewhere to
// point. TOML line tracking for a single string value is keyed by byte
// offset search rather than a full TOML AST, since that's all a diagnostic
// span needs here.
type AliasSpan struct {
	Path string
	Line int
	Col  int
}

// AliasSpanFor locates the line/column of an alias's value string inside
// the manifest file, for the Warning's child diagnostic in spec.md §4.B.
func AliasSpanFor(manifestPath, alias string) (AliasSpan, bool) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return AliasSpan{}, false
	}
	line, col, ok := findTOMLKeyValue(string(data), alias)
	if !ok {
		return AliasSpan{}, false
	}
	return AliasSpan{Path: manifestPath, Line: line, Col: col}, true
}

// findTOMLKeyValue does a line-oriented search for "alias = " inside a
// [packages] table — enough precision for a diagnostic span, not a general
// TOML parser.
func findTOMLKeyValue(content, key string) (line, col int, ok bool) {
	lineNum := 1
	col = 1
	inPackages := false
	start := 0
	for i := 0; i <= len(content); i++ {
		if i == len(content) || content[i] == '\n' {
			text := content[start:i]
			trimmed := trimSpace(text)
			if len(trimmed) >= 2 && trimmed[0] == '[' {
				inPackages = trimmed == "[packages]"
			} else if inPackages {
				if idx := findKeyPrefix(trimmed, key); idx >= 0 {
					return lineNum, idx + 1, true
				}
			}
			start = i + 1
			lineNum++
		}
	}
	return 0, 0, false
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

func findKeyPrefix(line, key string) int {
	for i := 0; i < len(line); i++ {
		if line[i] == '=' {
			candidate := trimSpace(line[:i])
			if candidate == key {
				return i + 1
			}
			return -1
		}
	}
	return -1
}
