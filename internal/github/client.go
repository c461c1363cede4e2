// Package github fetches release metadata for enrichment. The data is
// cosmetic; callers swallow every failure from this package.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skaphos/upkeep/internal/model"
)

// Client lists releases for an owner/repo pair.
type Client interface {
	ListReleases(ctx context.Context, owner, repo string) ([]model.ReleaseMeta, error)
}

// release is the GitHub REST shape, pared down to the consumed fields.
type release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

func toMeta(releases []release) []model.ReleaseMeta {
	metas := make([]model.ReleaseMeta, 0, len(releases))
	for _, rel := range releases {
		metas = append(metas, model.ReleaseMeta{
			TagName:     rel.TagName,
			Title:       rel.Name,
			Body:        rel.Body,
			Prerelease:  rel.Prerelease,
			HTMLURL:     rel.HTMLURL,
			PublishedAt: rel.PublishedAt,
		})
	}
	return metas
}

// CommandRunner runs an external command; the gh client shares the
// process runner the git layer uses.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CLIClient lists releases through the gh CLI, which carries the user's
// existing authentication.
type CLIClient struct {
	Runner CommandRunner
}

// Available probes for a working gh binary.
func (c *CLIClient) Available(ctx context.Context) bool {
	_, err := c.Runner.Run(ctx, "", "--version")
	return err == nil
}

// ListReleases runs `gh api repos/{owner}/{repo}/releases`.
func (c *CLIClient) ListReleases(ctx context.Context, owner, repo string) ([]model.ReleaseMeta, error) {
	out, err := c.Runner.Run(ctx, "", "api", fmt.Sprintf("repos/%s/%s/releases", owner, repo))
	if err != nil {
		return nil, err
	}
	var releases []release
	if err := json.Unmarshal([]byte(out), &releases); err != nil {
		return nil, fmt.Errorf("parse gh releases: %w", err)
	}
	return toMeta(releases), nil
}

// HTTPClient is the unauthenticated REST fallback used when gh is absent.
type HTTPClient struct {
	// BaseURL overrides the API root in tests.
	BaseURL string
	// HTTP is the underlying client. Nil uses a 15s-timeout default.
	HTTP *http.Client
}

// ListReleases fetches the public releases endpoint.
func (c *HTTPClient) ListReleases(ctx context.Context, owner, repo string) ([]model.ReleaseMeta, error) {
	base := c.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	url := fmt.Sprintf("%s/repos/%s/%s/releases", base, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GitHub API error: %s: %s", resp.Status, body)
	}
	var releases []release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, err
	}
	return toMeta(releases), nil
}

// Fallback tries clients in order and returns the first success.
type Fallback struct {
	Clients []Client
}

// ListReleases returns the first successful result, or the last error.
func (f *Fallback) ListReleases(ctx context.Context, owner, repo string) ([]model.ReleaseMeta, error) {
	var lastErr error
	for _, client := range f.Clients {
		metas, err := client.ListReleases(ctx, owner, repo)
		if err == nil {
			return metas, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no release metadata source configured")
	}
	return nil, lastErr
}
