// Package github lists releases and downloads assets from GitHub.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"binup/internal/release"
)

const (
	perPage = 50
	// maxPages bounds pagination when searching for a stable release.
	maxPages = 4

	defaultTimeout = 30 * time.Second
	defaultRetries = 3
)

// Client talks to the GitHub releases API.
type Client struct {
	gh       *gh.Client
	download *http.Client
	timeout  time.Duration
	logger   log.FieldLogger
}

type options struct {
	token   string
	baseURL string
	timeout time.Duration
	retries int
	logger  log.FieldLogger
}

// Option configures a Client.
type Option func(*options)

// WithToken authenticates API calls.
func WithToken(token string) Option { return func(o *options) { o.token = token } }

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = u } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) Option { return func(o *options) { o.retries = n } }

// WithLogger routes retry diagnostics to logger.
func WithLogger(l log.FieldLogger) Option { return func(o *options) { o.logger = l } }

// NewClient builds a Client with retries and optional token authentication.
func NewClient(opts ...Option) (*Client, error) {
	o := options{timeout: defaultTimeout, retries: defaultRetries, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	// The API client hands redirects back to go-github, which fetches the
	// storage URL through the unauthenticated download client.
	apiRetry := newRetryClient(o)
	apiRetry.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	api := apiRetry.StandardClient()
	if o.token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, apiRetry.StandardClient())
		api = oauth2.NewClient(ctx, &tokenSource{o.token})
	}

	client := gh.NewClient(api)
	if o.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{gh: client, download: newRetryClient(o).StandardClient(), timeout: o.timeout, logger: o.logger}, nil
}

func newRetryClient(o options) *retryablehttp.Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = o.retries
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.Logger = leveledLogger{o.logger}
	retry.HTTPClient.Transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: o.timeout,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return retry
}

type tokenSource struct {
	token string
}

func (t *tokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{
		AccessToken: t.token,
	}, nil
}

// Releases lists the project's published releases, newest first. Drafts are
// skipped. Pagination stops at the first page containing a stable release.
func (c *Client) Releases(ctx context.Context, project release.Project) ([]release.Release, error) {
	op := "list releases of " + project.String()
	c.logger.Debugf("Getting %s releases...", project)

	var out []release.Release
	opts := &gh.ListOptions{PerPage: perPage}
	for page := 0; page < maxPages; page++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		items, resp, err := c.gh.Repositories.ListReleases(callCtx, project.Owner, project.Name, opts)
		cancel()
		if err != nil {
			return nil, classify(op, err, ErrProjectNotFound)
		}

		stable := false
		for _, item := range items {
			if item.GetDraft() {
				continue
			}
			r := convertRelease(item)
			stable = stable || !r.Prerelease
			out = append(out, r)
		}
		if stable || resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.logger.Debugf("%s has %d releases", project, len(out))
	return out, nil
}

// Download streams the content of an asset. The caller closes the reader.
func (c *Client) Download(ctx context.Context, project release.Project, asset release.Asset) (io.ReadCloser, error) {
	op := "download " + asset.Name
	c.logger.Debugf("Downloading %s...", asset.Name)
	rc, redirect, err := c.gh.Repositories.DownloadReleaseAsset(ctx, project.Owner, project.Name, asset.ID, nil)
	if err != nil {
		return nil, classify(op, err, ErrAssetNotFound)
	}
	if rc != nil {
		return rc, nil
	}
	if redirect == "" {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("no content and no redirect")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, redirect, nil)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", op, ErrAssetNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp.Body, nil
}

func convertRelease(item *gh.RepositoryRelease) release.Release {
	assets := make([]release.Asset, 0, len(item.Assets))
	for _, a := range item.Assets {
		assets = append(assets, release.Asset{
			ID:        a.GetID(),
			Name:      a.GetName(),
			Size:      int64(a.GetSize()),
			UpdatedAt: a.GetUpdatedAt().Time,
			URL:       a.GetBrowserDownloadURL(),
		})
	}
	r := release.New(item.GetTagName(), item.GetPrerelease(), assets)
	r.PublishedAt = item.GetPublishedAt().Time
	r.HTMLURL = item.GetHTMLURL()
	return r
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l log.FieldLogger
}

func (l leveledLogger) fields(kv []interface{}) log.FieldLogger {
	entry := l.l
	for i := 0; i+1 < len(kv); i += 2 {
		entry = entry.WithField(fmt.Sprint(kv[i]), kv[i+1])
	}
	return entry
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.fields(kv).Warn(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.fields(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.fields(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.fields(kv).Debug(msg) }

var _ retryablehttp.LeveledLogger = leveledLogger{}
