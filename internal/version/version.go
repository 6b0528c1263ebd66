// Package version holds walletd build information and checks GitHub for
// newer releases.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Build information, injected via -ldflags at release time.
//
//nolint:gochecknoglobals // set by the linker
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Default configuration constants.
const (
	DefaultBaseURL      = "https://api.github.com"
	DefaultTimeout      = 30 * time.Second
	maxResponseBodySize = 64 * 1024
)

// ErrGitHubAPIFailed indicates the release lookup failed.
var ErrGitHubAPIFailed = errors.New("GitHub API request failed")

// Release represents a published GitHub release.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Client fetches release information for one repository.
type Client struct {
	baseURL    string
	repo       string // "owner/name"
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the GitHub API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a release client for the given "owner/name" repository.
func NewClient(repo string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		repo:       repo,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  fmt.Sprintf("walletd/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease fetches the most recent published release.
func (c *Client) LatestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrGitHubAPIFailed, resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &release, nil
}

// IsNewer reports whether tag names a release newer than the running
// build. Development builds always report newer available releases.
func IsNewer(tag string) bool {
	return Compare(tag, Version) > 0
}

// Compare compares two semver-ish version strings, returning 1, 0, or
// -1. A "dev" or empty version sorts before any release.
func Compare(v1, v2 string) int {
	dev1 := v1 == "" || v1 == "dev"
	dev2 := v2 == "" || v2 == "dev"
	switch {
	case dev1 && dev2:
		return 0
	case dev1:
		return -1
	case dev2:
		return 1
	}

	parts1 := parse(v1)
	parts2 := parse(v2)
	for i := 0; i < 3; i++ {
		var a, b int
		if i < len(parts1) {
			a = parts1[i]
		}
		if i < len(parts2) {
			b = parts2[i]
		}
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}
	return 0
}

// parse extracts the numeric major.minor.patch components, ignoring a
// leading "v" and any pre-release or build suffix.
func parse(version string) []int {
	version = strings.TrimPrefix(version, "v")
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		if num, err := strconv.Atoi(part); err == nil {
			result = append(result, num)
		}
	}
	return result
}
