package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"binup/internal/release"
)

const releasesJSON = `[
  {"tag_name": "v2.0.0-rc.1", "prerelease": true, "assets": []},
  {"tag_name": "v1.9.0", "draft": true, "assets": []},
  {"tag_name": "v1.2.0", "prerelease": false, "html_url": "https://github.com/acme/tool/releases/tag/v1.2.0",
   "published_at": "2024-01-02T03:04:05Z",
   "assets": [{"id": 7, "name": "tool-linux-amd64.tar.gz", "size": 123,
               "updated_at": "2024-01-02T03:05:00Z",
               "browser_download_url": "https://example.invalid/tool-linux-amd64.tar.gz"}]}
]`

var project = release.Project{Owner: "acme", Name: "tool"}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRetries(0), WithTimeout(5 * time.Second)}, opts...)
	client, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestReleases(t *testing.T) {
	var auth string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/tool/releases", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if got := r.URL.Query().Get("per_page"); got != "50" {
			t.Errorf("per_page = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, releasesJSON)
	})
	client := newTestClient(t, mux, WithToken("secret"))

	releases, err := client.Releases(context.Background(), project)
	if err != nil {
		t.Fatalf("Releases: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("Authorization = %q", auth)
	}
	if len(releases) != 2 {
		t.Fatalf("got %d releases, want 2 (draft skipped)", len(releases))
	}
	if !releases[0].Prerelease || releases[0].Tag != "v2.0.0-rc.1" {
		t.Fatalf("first release = %+v", releases[0])
	}
	stable := releases[1]
	if stable.Version.String() != "1.2.0" || stable.HTMLURL == "" {
		t.Fatalf("stable release = %+v", stable)
	}
	if want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC); !stable.PublishedAt.Equal(want) {
		t.Fatalf("published = %v", stable.PublishedAt)
	}
	if len(stable.Assets) != 1 {
		t.Fatalf("assets = %+v", stable.Assets)
	}
	asset := stable.Assets[0]
	if asset.ID != 7 || asset.Size != 123 || asset.Name != "tool-linux-amd64.tar.gz" {
		t.Fatalf("asset = %+v", asset)
	}
	if want := time.Date(2024, 1, 2, 3, 5, 0, 0, time.UTC); !asset.UpdatedAt.Equal(want) {
		t.Fatalf("asset updated = %v", asset.UpdatedAt)
	}
}

func TestReleasesPaginatesUntilStable(t *testing.T) {
	var srvURL string
	pages := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/tool/releases", func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/tool/releases?page=2&per_page=50>; rel="next"`, srvURL))
			fmt.Fprint(w, `[{"tag_name": "v3.0.0-beta", "prerelease": true}]`)
		case "2":
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/tool/releases?page=3&per_page=50>; rel="next"`, srvURL))
			fmt.Fprint(w, `[{"tag_name": "v2.9.0", "prerelease": false}]`)
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
			fmt.Fprint(w, `[]`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	client, err := NewClient(WithBaseURL(srv.URL), WithRetries(0))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	releases, err := client.Releases(context.Background(), project)
	if err != nil {
		t.Fatalf("Releases: %v", err)
	}
	if pages != 2 || len(releases) != 2 || releases[1].Tag != "v2.9.0" {
		t.Fatalf("pages=%d releases=%+v", pages, releases)
	}
}

func TestReleasesErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		headers map[string]string
		check   func(error) bool
	}{
		{"not found", http.StatusNotFound, nil, func(err error) bool { return errors.Is(err, ErrProjectNotFound) }},
		{"unauthorized", http.StatusUnauthorized, nil, func(err error) bool { return errors.Is(err, ErrAuth) }},
		{"forbidden", http.StatusForbidden, nil, func(err error) bool { return errors.Is(err, ErrAuth) }},
		{"rate limited", http.StatusForbidden, map[string]string{
			"X-RateLimit-Limit":     "60",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     fmt.Sprint(time.Now().Add(time.Hour).Unix()),
		}, func(err error) bool {
			var ne *NetworkError
			return errors.As(err, &ne) && !errors.Is(err, ErrAuth)
		}},
		{"server error", http.StatusInternalServerError, nil, func(err error) bool {
			var ne *NetworkError
			return errors.As(err, &ne)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"message": "nope"}`)
			}))
			_, err := client.Releases(context.Background(), project)
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestReleasesRetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"tag_name": "v1.0.0"}]`)
	}), WithRetries(1))

	releases, err := client.Releases(context.Background(), project)
	if err != nil {
		t.Fatalf("Releases: %v", err)
	}
	if calls != 2 || len(releases) != 1 {
		t.Fatalf("calls=%d releases=%d", calls, len(releases))
	}
}

func TestDownloadFollowsRedirect(t *testing.T) {
	var apiAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/tool/releases/assets/7", func(w http.ResponseWriter, r *http.Request) {
		apiAuth = r.Header.Get("Authorization")
		if got := r.Header.Get("Accept"); got != "application/octet-stream" {
			t.Errorf("Accept = %q", got)
		}
		http.Redirect(w, r, "/blob/tool.tar.gz", http.StatusFound)
	})
	mux.HandleFunc("/blob/tool.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("credentials leaked to redirect target")
		}
		fmt.Fprint(w, "payload")
	})
	client := newTestClient(t, mux, WithToken("secret"))

	rc, err := client.Download(context.Background(), project, release.Asset{ID: 7, Name: "tool.tar.gz"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("payload = %q", data)
	}
	if apiAuth != "Bearer secret" {
		t.Fatalf("API request Authorization = %q", apiAuth)
	}
}

func TestDownloadDirect(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "direct")
	}))
	rc, err := client.Download(context.Background(), project, release.Asset{ID: 1, Name: "tool"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "direct" {
		t.Fatalf("payload = %q", data)
	}
}

func TestDownloadMissingAsset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/tool/releases/assets/9", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	mux.HandleFunc("/repos/acme/tool/releases/assets/10", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/blob/expired", http.StatusFound)
	})
	mux.HandleFunc("/blob/expired", http.NotFound)
	client := newTestClient(t, mux, WithToken("secret"))

	for _, id := range []int64{9, 10} {
		_, err := client.Download(context.Background(), project, release.Asset{ID: id, Name: "gone"})
		if !errors.Is(err, ErrAssetNotFound) || errors.Is(err, ErrProjectNotFound) {
			t.Fatalf("asset %d: unexpected error: %v", id, err)
		}
	}
}
