package version

import (
	"strings"
	"testing"
)

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		name   string
		info   Info
		binary string
		want   string
	}{
		{
			name:   "release",
			info:   Info{Version: "v1.2.0", Commit: "abc1234", BuildTime: "2026-03-01T12:00:00Z"},
			binary: "sentinel-server",
			want:   "sentinel-server v1.2.0 (abc1234 2026-03-01T12:00:00Z)",
		},
		{
			name:   "dirty tree",
			info:   Info{Version: "v1.2.0", Commit: "abc1234", Dirty: true, BuildTime: "2026-03-01T12:00:00Z"},
			binary: "sentinel",
			want:   "sentinel v1.2.0 (abc1234-dirty 2026-03-01T12:00:00Z)",
		},
		{
			name:   "go run",
			info:   Info{Version: "dev", Commit: "unknown", BuildTime: "unknown"},
			binary: "sentinel",
			want:   "sentinel dev (unknown unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(tt.binary); got != tt.want {
				t.Errorf("Short(%q) = %q, want %q", tt.binary, got, tt.want)
			}
		})
	}
}

func TestInfo_Detail(t *testing.T) {
	info := Info{Version: "v1.2.0", Commit: "abc1234", BuildTime: "2026-03-01T12:00:00Z", GoVersion: "go1.24.0"}

	detail := info.Detail()
	for _, line := range []string{"Version:    v1.2.0", "Git commit: abc1234 (clean)", "Built:      2026-03-01T12:00:00Z", "Go version: go1.24.0"} {
		if !strings.Contains(detail, line) {
			t.Errorf("Detail() missing %q\nGot:\n%s", line, detail)
		}
	}

	info.Dirty = true
	if !strings.Contains(info.Detail(), "(dirty)") {
		t.Errorf("Detail() should report a dirty tree\nGot:\n%s", info.Detail())
	}
}

func TestCurrent_ReadsLinkerVariables(t *testing.T) {
	saved := []string{Version, GitCommit, BuildTime, GitDirty}
	t.Cleanup(func() {
		Version, GitCommit, BuildTime, GitDirty = saved[0], saved[1], saved[2], saved[3]
	})

	Version, GitCommit, BuildTime, GitDirty = "v2.0.0", "def5678", "2026-06-15T08:30:00Z", "true"

	info := Current()
	if info.Version != "v2.0.0" || info.Commit != "def5678" || !info.Dirty || info.GoVersion == "" {
		t.Fatalf("unexpected info %+v", info)
	}

	attrs := info.LogAttrs()
	if len(attrs) != 6 || attrs[3] != "def5678-dirty" {
		t.Errorf("unexpected log attrs %v", attrs)
	}
}
