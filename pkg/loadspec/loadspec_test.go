package loadspec

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Spec
	}{
		{
			name: "current directory",
			raw:  ".",
			want: Spec{Kind: KindPath, Path: "."},
		},
		{
			name: "relative sibling path",
			raw:  "./sibling.zen",
			want: Spec{Kind: KindPath, Path: "./sibling.zen"},
		},
		{
			name: "bare filename",
			raw:  "sibling.zen",
			want: Spec{Kind: KindPath, Path: "sibling.zen"},
		},
		{
			name: "workspace path",
			raw:  "//boards/main/main.zen",
			want: Spec{Kind: KindWorkspacePath, Path: "boards/main/main.zen"},
		},
		{
			name: "package alias with no rev",
			raw:  "@sensors",
			want: Spec{Kind: KindPackage, Package: "sensors"},
		},
		{
			name: "package alias with subpath",
			raw:  "@sensors/imu.zen",
			want: Spec{Kind: KindPackage, Package: "sensors", Subpath: "imu.zen"},
		},
		{
			name: "package alias with rev and subpath",
			raw:  "@sensors:v2/imu.zen",
			want: Spec{Kind: KindPackage, Package: "sensors", Tag: "v2", Subpath: "imu.zen"},
		},
		{
			name: "github with subpath",
			raw:  "@github/acme/sensors/imu.zen",
			want: Spec{Kind: KindGithub, User: "acme", Repo: "sensors", Subpath: "imu.zen"},
		},
		{
			name: "github with rev and subpath",
			raw:  "@github/acme/sensors:abcdef1/imu.zen",
			want: Spec{Kind: KindGithub, User: "acme", Repo: "sensors", Rev: "abcdef1", Subpath: "imu.zen"},
		},
		{
			name: "gitlab with rev and subpath",
			raw:  "@gitlab/myproject:main/board.zen",
			want: Spec{Kind: KindGitlab, ProjectPath: "myproject", Rev: "main", Subpath: "board.zen"},
		},
		{
			name: "oci reference",
			raw:  "oci://ghcr.io/sensors:v1/imu.zen",
			want: Spec{Kind: KindOCIPackage, Registry: "ghcr.io", Repository: "sensors", Tag: "v1", Subpath: "imu.zen"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("Parse(\"\") should return an error")
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindPath, false},
		{KindWorkspacePath, false},
		{KindPackage, false},
		{KindGithub, true},
		{KindGitlab, true},
		{KindOCIPackage, true},
	}
	for _, tt := range tests {
		s := Spec{Kind: tt.kind}
		if got := s.IsRemote(); got != tt.want {
			t.Errorf("Spec{Kind: %v}.IsRemote() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
