package version

import (
	"runtime"
	"runtime/debug"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("Platform = %q, want %q", info.Platform, want)
	}
}

func TestApplyVCS(t *testing.T) {
	info := Info{Commit: "unknown", Date: "unknown"}
	applyVCS(&info, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-10-01T09:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	})

	if info.Commit != "0123456789ab" {
		t.Errorf("Commit = %q, want 0123456789ab", info.Commit)
	}
	if info.Date != "2026-10-01T09:00:00Z" {
		t.Errorf("Date = %q, want vcs time", info.Date)
	}
	if !info.Dirty {
		t.Error("Dirty = false, want true from vcs.modified")
	}
}

func TestApplyVCS_KeepsLdflagsDate(t *testing.T) {
	info := Info{Commit: "unknown", Date: "2026-06-01"}
	applyVCS(&info, []debug.BuildSetting{{Key: "vcs.time", Value: "2026-10-01T09:00:00Z"}})
	if info.Date != "2026-06-01" {
		t.Errorf("Date = %q, want ldflags value kept", info.Date)
	}
}

func TestInfo_UserAgent(t *testing.T) {
	info := Info{Version: "1.4.0", Dirty: true, Platform: "linux/arm64"}

	want := "codecredit-api/1.4.0-dirty (linux/arm64)"
	if got := info.UserAgent(); got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}

func TestInfo_LogValue(t *testing.T) {
	info := Info{Version: "1.4.0", Commit: "abc123", Platform: "linux/amd64"}

	attrs := info.LogValue().Group()
	got := make(map[string]string, len(attrs))
	for _, a := range attrs {
		got[a.Key] = a.Value.String()
	}
	if got["version"] != "1.4.0" || got["commit"] != "abc123" || got["platform"] != "linux/amd64" {
		t.Errorf("LogValue() = %v", got)
	}
}
