package matcher

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		pattern   string
		candidate string
		want      bool
	}{
		{"tool-linux-*", "tool-linux-x64", true},
		{"tool-linux-*", "tool-linux-x64.tar.gz", true},
		{"tool-linux-*", "xtool-linux-x64", false},
		{"Tool-*", "tool-linux", false},
		{"*/tool", "bin/tool", true},
		{"*/tool", "a/bin/tool", false},
		{"**/tool", "a/bin/tool", true},
		{`tool\*`, "tool*", true},
		{`tool\*`, "toolx", false},
		{"tool_{linux,darwin}_*.tar.gz", "tool_darwin_arm64.tar.gz", true},
		{"~tool-.*-x64", "tool-linux-x64", true},
		{"~tool-.*-x64", "tool-linux-x64.sha256", false},
		{"~x64", "tool-linux-x64", false},
		{"~x64$", "tool-linux-x64", true},
		{"~^tool", "tool-linux-x64", true},
	}
	for _, tt := range tests {
		p, err := Parse(tt.pattern)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.pattern, err)
		}
		if got := p.Match(tt.candidate); got != tt.want {
			t.Errorf("%q.Match(%q) = %v, want %v", tt.pattern, tt.candidate, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, pattern := range []string{"", "~(unclosed", "~a["} {
		_, err := Parse(pattern)
		var pe *PatternError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error = %v, want *PatternError", pattern, err)
		}
	}
}

func mustParse(t *testing.T, s string) Pattern {
	t.Helper()
	p, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return p
}

func TestSelectOne(t *testing.T) {
	candidates := []string{"tool-linux-x64", "tool-linux-arm64"}

	_, err := SelectOne(candidates, mustParse(t, "tool-linux-*"))
	var ambiguous *AmbiguousMatchError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousMatchError, got %v", err)
	}
	if !reflect.DeepEqual(ambiguous.Matches, candidates) {
		t.Errorf("ambiguous matches = %v, want %v", ambiguous.Matches, candidates)
	}
	if !errors.Is(err, ErrAmbiguous) {
		t.Error("expected errors.Is(err, ErrAmbiguous)")
	}

	got, err := SelectOne(candidates, mustParse(t, "tool-linux-x64"))
	if err != nil {
		t.Fatalf("SelectOne exact: %v", err)
	}
	if got != "tool-linux-x64" {
		t.Errorf("SelectOne exact = %q", got)
	}

	_, err = SelectOne(candidates, mustParse(t, "tool-darwin-*"))
	var none *NoMatchError
	if !errors.As(err, &none) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if none.Pattern != "tool-darwin-*" || len(none.Candidates) != 2 {
		t.Errorf("NoMatchError = %+v", none)
	}
}

type platformCase struct {
	goos, goarch, want string
}

func TestAutoAsset(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		project string
		assets  []string
		cases   []platformCase
		index   int
	}{
		{
			name: "binup", tool: "binup", project: "binup",
			assets: []string{
				"binup-v1.1.0-linux-x64.tar.bz2",
				"binup-v1.1.0-macos-arm64.tar.bz2",
				"binup-v1.1.0-macos-x64.tar.bz2",
			},
			cases: []platformCase{
				{"linux", "amd64", "binup-v1.1.0-linux-x64.tar.bz2"},
				{"darwin", "amd64", "binup-v1.1.0-macos-x64.tar.bz2"},
				{"darwin", "arm64", "binup-v1.1.0-macos-arm64.tar.bz2"},
			},
			index: 0,
		},
		{
			name: "dnscrypt-proxy", tool: "dnscrypt-proxy", project: "dnscrypt-proxy",
			assets: []string{
				"dnscrypt-proxy-android_arm64-2.1.5.zip",
				"dnscrypt-proxy-freebsd_amd64-2.1.5.tar.gz",
				"dnscrypt-proxy-linux_arm64-2.1.5.tar.gz",
				"dnscrypt-proxy-linux_arm64-2.1.5.tar.gz.minisig",
				"dnscrypt-proxy-linux_x86_64-2.1.5.tar.gz",
				"dnscrypt-proxy-linux_x86_64-2.1.5.tar.gz.minisig",
				"dnscrypt-proxy-macos_arm64-2.1.5.zip",
				"dnscrypt-proxy-macos_arm64-2.1.5.zip.minisig",
				"dnscrypt-proxy-macos_x86_64-2.1.5.zip",
				"dnscrypt-proxy-win64-2.1.5.zip",
			},
			cases: []platformCase{
				{"linux", "amd64", "dnscrypt-proxy-linux_x86_64-2.1.5.tar.gz"},
				{"linux", "arm64", "dnscrypt-proxy-linux_arm64-2.1.5.tar.gz"},
				{"darwin", "amd64", "dnscrypt-proxy-macos_x86_64-2.1.5.zip"},
				{"darwin", "arm64", "dnscrypt-proxy-macos_arm64-2.1.5.zip"},
			},
			index: 0,
		},
		{
			name: "prometheus-nginxlog-exporter", tool: "prometheus-nginxlog-exporter", project: "prometheus-nginxlog-exporter",
			assets: []string{
				"checksums.txt",
				"prometheus-nginxlog-exporter_1.11.0_darwin_amd64.tar.gz",
				"prometheus-nginxlog-exporter_1.11.0_darwin_arm64.tar.gz",
				"prometheus-nginxlog-exporter_1.11.0_linux_amd64.deb",
				"prometheus-nginxlog-exporter_1.11.0_linux_amd64.rpm",
				"prometheus-nginxlog-exporter_1.11.0_linux_amd64.tar.gz",
				"prometheus-nginxlog-exporter_1.11.0_linux_arm64.tar.gz",
			},
			cases: []platformCase{
				{"linux", "amd64", "prometheus-nginxlog-exporter_1.11.0_linux_amd64.tar.gz"},
				{"darwin", "amd64", "prometheus-nginxlog-exporter_1.11.0_darwin_amd64.tar.gz"},
				{"darwin", "arm64", "prometheus-nginxlog-exporter_1.11.0_darwin_arm64.tar.gz"},
			},
			index: 0,
		},
		{
			name: "node_exporter", tool: "prometheus-node-exporter", project: "node_exporter",
			assets: []string{
				"node_exporter-1.8.2.darwin-amd64.tar.gz",
				"node_exporter-1.8.2.darwin-arm64.tar.gz",
				"node_exporter-1.8.2.linux-386.tar.gz",
				"node_exporter-1.8.2.linux-amd64.tar.gz",
				"node_exporter-1.8.2.linux-arm64.tar.gz",
				"node_exporter-1.8.2.linux-armv7.tar.gz",
				"node_exporter-1.8.2.netbsd-amd64.tar.gz",
				"sha256sums.txt",
			},
			cases: []platformCase{
				{"linux", "amd64", "node_exporter-1.8.2.linux-amd64.tar.gz"},
				{"darwin", "amd64", "node_exporter-1.8.2.darwin-amd64.tar.gz"},
				{"darwin", "arm64", "node_exporter-1.8.2.darwin-arm64.tar.gz"},
			},
			index: 2,
		},
		{
			name: "shadowsocks", tool: "ssservice", project: "shadowsocks-rust",
			assets: []string{
				"shadowsocks-v1.20.3.aarch64-apple-darwin.tar.xz",
				"shadowsocks-v1.20.3.aarch64-apple-darwin.tar.xz.sha256",
				"shadowsocks-v1.20.3.aarch64-unknown-linux-gnu.tar.xz",
				"shadowsocks-v1.20.3.x86_64-apple-darwin.tar.xz",
				"shadowsocks-v1.20.3.x86_64-apple-darwin.tar.xz.sha256",
				"shadowsocks-v1.20.3.x86_64-pc-windows-gnu.zip",
				"shadowsocks-v1.20.3.x86_64-unknown-linux-gnu.tar.xz",
				"shadowsocks-v1.20.3.x86_64-unknown-linux-musl.tar.xz",
			},
			cases: []platformCase{
				{"darwin", "amd64", "shadowsocks-v1.20.3.x86_64-apple-darwin.tar.xz"},
				{"darwin", "arm64", "shadowsocks-v1.20.3.aarch64-apple-darwin.tar.xz"},
			},
			index: 4,
		},
		{
			name: "ttyd", tool: "ttyd", project: "ttyd",
			assets: []string{
				"SHA256SUMS",
				"ttyd.aarch64",
				"ttyd.arm",
				"ttyd.i686",
				"ttyd.mips64",
				"ttyd.win32.exe",
				"ttyd.x86_64",
			},
			cases: []platformCase{
				{"linux", "amd64", "ttyd.x86_64"},
				{"darwin", "amd64", "ttyd.x86_64"},
				{"darwin", "arm64", "ttyd.aarch64"},
			},
			index: 3,
		},
		{
			name: "rapidgzip", tool: "rapidgzip", project: "indexed_bzip2",
			assets: []string{"rapidgzip"},
			cases: []platformCase{
				{"linux", "amd64", "rapidgzip"},
				{"darwin", "arm64", "rapidgzip"},
			},
			index: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, pc := range tt.cases {
				matchers, err := AssetMatchers(tt.tool, tt.project, pc.goos, pc.goarch)
				if err != nil {
					t.Fatalf("%s/%s: %v", pc.goos, pc.goarch, err)
				}
				for i, m := range matchers[:tt.index] {
					if got, _ := Select(tt.assets, m); len(got) != 0 {
						t.Errorf("%s/%s: matcher #%d %s unexpectedly matched %v", pc.goos, pc.goarch, i, m, got)
					}
				}
				got, err := Select(tt.assets, matchers[tt.index])
				if err != nil || len(got) != 1 || got[0] != pc.want {
					t.Errorf("%s/%s: matcher #%d %s = %v (%v), want [%s]", pc.goos, pc.goarch, tt.index, matchers[tt.index], got, err, pc.want)
				}

				asset, err := AutoAsset(tt.assets, tt.tool, tt.project, pc.goos, pc.goarch)
				if err != nil {
					t.Fatalf("%s/%s: AutoAsset: %v", pc.goos, pc.goarch, err)
				}
				if asset != pc.want {
					t.Errorf("%s/%s: AutoAsset = %q, want %q", pc.goos, pc.goarch, asset, pc.want)
				}
			}
		})
	}
}

func TestAutoAssetFailures(t *testing.T) {
	_, err := AutoAsset([]string{"tool.exe"}, "tool", "tool", "windows", "amd64")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("windows: err = %v, want ErrUnsupportedPlatform", err)
	}

	_, err = AutoAsset([]string{"checksums.txt", "other-linux-arm64.tar.gz"}, "tool", "tool", "linux", "amd64")
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("no match: err = %v", err)
	}

	_, err = AutoAsset([]string{"tool-linux-amd64-gnu.tar.gz", "tool-linux-amd64-musl.tar.gz"}, "tool", "tool", "linux", "amd64")
	var ambiguous *AmbiguousMatchError
	if !errors.As(err, &ambiguous) || len(ambiguous.Matches) != 2 {
		t.Errorf("ambiguous: err = %v", err)
	}
}

func TestBinaryMatcher(t *testing.T) {
	tests := []struct{ tool, project, file string }{
		{"tool", "tool", "tool"},
		{"binary", "project", "binary"},
		{"binary", "project", "directory/binary"},
		{"binary", "project", "directory/sub-directory/binary"},
		{"binary", "project", "project"},
		{"binary", "project", "directory/sub-directory/project"},
		{"b-b-b", "p-p-p", "b_b_b"},
		{"b_b_b", "p-p-p", "b-b-b"},
		{"b-b-b", "p-p-p", "p_p_p"},
		{"b-b-b", "p_p_p", "p-p-p"},
	}
	for _, tt := range tests {
		m := BinaryMatcher(tt.tool, tt.project)
		if !m.Match(tt.file) {
			t.Errorf("%s does not match %q", m, tt.file)
		}
	}
	if BinaryMatcher("tool", "tool").Match("tool.sha256") {
		t.Error("binary matcher must match whole base names")
	}
}

func TestAutoBinary(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		want       string
		wantErr    error
	}{
		{
			name:       "exact base name wins",
			candidates: []Candidate{{Path: "bin/app", Executable: true}, {Path: "README"}},
			want:       "bin/app",
		},
		{
			name:       "executable when no name matches",
			candidates: []Candidate{{Path: "dist/app-v1-linux", Executable: true}, {Path: "LICENSE"}},
			want:       "dist/app-v1-linux",
		},
		{
			name:       "sole candidate",
			candidates: []Candidate{{Path: "app_linux_amd64"}},
			want:       "app_linux_amd64",
		},
		{
			name:       "several executables",
			candidates: []Candidate{{Path: "a", Executable: true}, {Path: "b", Executable: true}},
			wantErr:    ErrAmbiguous,
		},
		{
			name:       "nothing to tell apart",
			candidates: []Candidate{{Path: "a.txt"}, {Path: "b.txt"}},
			wantErr:    ErrAmbiguous,
		},
		{
			name: "link and target count once",
			candidates: []Candidate{
				{Path: "app-1.0/libexec/app", Executable: true},
				{Path: "app-1.0/bin/app", Executable: true, Target: "app-1.0/libexec/app"},
			},
			want: "app-1.0/bin/app",
		},
		{
			name: "links to different files",
			candidates: []Candidate{
				{Path: "v1/app", Executable: true},
				{Path: "v2/app", Executable: true},
				{Path: "bin/app", Executable: true, Target: "v2/app"},
			},
			wantErr: ErrAmbiguous,
		},
		{
			name:    "no candidates",
			wantErr: ErrNoMatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AutoBinary(tt.candidates, "app", "app-project")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AutoBinary: %v", err)
			}
			if got != tt.want {
				t.Errorf("AutoBinary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectCandidate(t *testing.T) {
	candidates := []Candidate{
		{Path: "dist/app-real"},
		{Path: "dist/app", Target: "dist/app-real"},
		{Path: "dist/helper"},
	}
	got, err := SelectCandidate(candidates, mustParse(t, "dist/app*"))
	if err != nil {
		t.Fatalf("SelectCandidate: %v", err)
	}
	if got != "dist/app" {
		t.Errorf("SelectCandidate = %q, want the link", got)
	}

	_, err = SelectCandidate(candidates, mustParse(t, "dist/*"))
	var amb *AmbiguousMatchError
	if !errors.As(err, &amb) || len(amb.Matches) != 2 {
		t.Fatalf("err = %v, want two distinct files", err)
	}

	if _, err := SelectCandidate(candidates, mustParse(t, "*.exe")); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}
