package version

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"binup/internal/runner"
)

func TestParseRelease(t *testing.T) {
	cases := []struct {
		tag    string
		want   string
		semver bool
	}{
		{"v1.7.2", "1.7.2", true},
		{"1.7.2", "1.7.2", true},
		{"r38", "38.0.0", true},
		{"v1.2", "1.2.0", true},
		{"1.2", "1.2.0", true},
		{"v2.0.0-rc.1", "2.0.0-rc.1", true},
		{"nightly", "nightly", false},
		{"release-2024", "release-2024", false},
	}
	for _, tc := range cases {
		got := ParseRelease(tc.tag)
		if got.IsSemver() != tc.semver {
			t.Fatalf("ParseRelease(%q).IsSemver() = %v", tc.tag, got.IsSemver())
		}
		if got.String() != tc.want {
			t.Fatalf("ParseRelease(%q) = %q, want %q", tc.tag, got.String(), tc.want)
		}
	}
}

func TestParseOutput(t *testing.T) {
	cases := []struct {
		name string
		out  string
		want string
	}{
		{"name and version", "binup 0.3.0\n", "0.3.0"},
		{"revision", "r38\n", "38.0.0"},
		{"embedded tag", "victoria-metrics-20240425-145433-tags-v1.101.0-0-g5334f0c2c\n", "1.101.0"},
		{"repeated name", "vmctl version vmctl-20240425-145537-tags-v1.101.0-0-g5334f0c2c\n", "1.101.0"},
		{"hash suffix", "hugo v0.145.0-666444f0a52132f9fec9f71cf25b441cc6a4f355 darwin/arm64 BuildDate=2025-02-26T15:41:25Z VendorInfo=gohugoio\n", "0.145.0"},
		{"multiline", "prometheus, version 2.51.2 (branch: HEAD, revision: b4c0ab52c3e9b940ab803581ddae9b3d9a452337)\n  build user:       root@b63f02a423d9\n  go version:       go1.22.2\n", "2.51.2"},
		{"major minor", "tool 1.4\n", "1.4.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, out := range []string{tc.out, tc.out[:len(tc.out)-1]} {
				got, ok := ParseOutput(out)
				if !ok {
					t.Fatalf("ParseOutput(%q) found nothing", out)
				}
				if got.String() != tc.want {
					t.Fatalf("ParseOutput(%q) = %s, want %s", out, got, tc.want)
				}
			}
		})
	}
}

func TestParseOutputNoVersion(t *testing.T) {
	for _, out := range []string{"", "usage: tool [flags]", "unknown flag --version\n1.2.3"} {
		if v, ok := ParseOutput(out); ok {
			t.Fatalf("ParseOutput(%q) = %s, want none", out, v)
		}
	}
}

func TestNewerThan(t *testing.T) {
	installed := ParseRelease("1.2.3").Semver
	cases := []struct {
		tag   string
		newer bool
		ok    bool
	}{
		{"v1.2.4", true, true},
		{"v1.2.3", false, true},
		{"v1.2.2", false, true},
		{"v1.3", true, true},
		{"nightly", false, false},
	}
	for _, tc := range cases {
		newer, ok := ParseRelease(tc.tag).NewerThan(installed)
		if newer != tc.newer || ok != tc.ok {
			t.Fatalf("%s.NewerThan(1.2.3) = %v, %v", tc.tag, newer, ok)
		}
	}

	printed, _ := ParseOutput("tool 1.2\n")
	if newer, ok := ParseRelease("v1.2").NewerThan(printed); !ok || newer {
		t.Fatalf("v1.2.NewerThan(printed 1.2) = %v, %v, want equal semver", newer, ok)
	}
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{"": SourceFlag, "flag": SourceFlag, "command": SourceCommand} {
		got, err := ParseSource(in)
		if err != nil || got != want {
			t.Fatalf("ParseSource(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseSource("exec"); err == nil {
		t.Fatal("expected error for unknown source")
	}
	if got := SourceCommand.Args(); len(got) != 1 || got[0] != "version" {
		t.Fatalf("SourceCommand.Args() = %v", got)
	}
	if got := SourceFlag.Args(); len(got) != 1 || got[0] != "--version" {
		t.Fatalf("SourceFlag.Args() = %v", got)
	}
}

type fakeRunner struct {
	result runner.Result
	err    error
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, _ runner.Options) (runner.Result, error) {
	f.args = args
	return f.result, f.err
}

func writeBinary(t *testing.T, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func TestResolveMissing(t *testing.T) {
	r := &Resolver{Runner: &fakeRunner{}}
	state, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "absent"), SourceFlag)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state.Installed {
		t.Fatal("missing binary reported as installed")
	}
}

func TestResolveVersion(t *testing.T) {
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	path := writeBinary(t, mtime)
	fake := &fakeRunner{result: runner.Result{Stdout: []byte("tool version 1.4.2\n")}}
	r := &Resolver{Runner: fake}

	state, err := r.Resolve(context.Background(), path, SourceCommand)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !state.Installed || state.Version == nil || state.Version.String() != "1.4.2" {
		t.Fatalf("state = %+v", state)
	}
	if !state.ModTime.Equal(mtime) {
		t.Fatalf("mtime = %v, want %v", state.ModTime, mtime)
	}
	if len(fake.args) != 1 || fake.args[0] != "version" {
		t.Fatalf("args = %v", fake.args)
	}
}

func TestResolveVersionFromStderr(t *testing.T) {
	path := writeBinary(t, time.Now())
	r := &Resolver{Runner: &fakeRunner{result: runner.Result{Stderr: []byte("tool 2.0.1\n")}}}
	state, err := r.Resolve(context.Background(), path, SourceFlag)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state.Version == nil || state.Version.String() != "2.0.1" {
		t.Fatalf("version = %v", state.Version)
	}
}

func TestResolveFallsBackToModTime(t *testing.T) {
	mtime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writeBinary(t, mtime)
	r := &Resolver{Runner: &fakeRunner{
		result: runner.Result{Stdout: []byte("v9.9.9\n")},
		err:    errors.New("exit status 1"),
	}}
	state, err := r.Resolve(context.Background(), path, SourceFlag)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !state.Installed || state.Version != nil {
		t.Fatalf("state = %+v, want installed without version", state)
	}
	if !state.ModTime.Equal(mtime) {
		t.Fatalf("mtime = %v", state.ModTime)
	}
}

func TestResolveRealBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	script := "#!/bin/sh\nif [ \"$1\" = --version ]; then echo 'tool v3.1.4'; else exit 2; fi\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewResolver(nil)

	state, err := r.Resolve(context.Background(), path, SourceFlag)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state.Version == nil || state.Version.String() != "3.1.4" {
		t.Fatalf("flag version = %v", state.Version)
	}

	state, err = r.Resolve(context.Background(), path, SourceCommand)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state.Version != nil {
		t.Fatalf("command version = %v, want nil", state.Version)
	}
}

func TestResolveStatError(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{Runner: &fakeRunner{}}
	if _, err := r.Resolve(context.Background(), dir, SourceFlag); err == nil {
		t.Fatal("expected error for directory path")
	}
}
