// Package github looks up the repository and release a formula is generated for.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v74/github"
	"github.com/sirupsen/logrus"
)

// Repository holds the repository fields a formula needs
type Repository struct {
	Owner       string
	Name        string
	Description string
	License     string // SPDX identifier
	Homepage    string
}

// Release describes a published release
type Release struct {
	Name    string
	TagName string
}

// Version returns the version string used for archive URLs and commit
// messages: the release name when it looks like a version, the tag otherwise.
func (r Release) Version() string {
	if r.Name != "" && !strings.ContainsAny(r.Name, " \t") {
		return r.Name
	}
	return r.TagName
}

// Client wraps the GitHub REST API
type Client struct {
	api *gh.Client
}

// NewClient creates a client. An empty token makes anonymous requests;
// a non-empty baseURL targets GitHub Enterprise or a test server.
func NewClient(httpClient *http.Client, token, baseURL string) (*Client, error) {
	api := gh.NewClient(httpClient)
	if token != "" {
		api = api.WithAuthToken(token)
	}
	api.UserAgent = "brewrelease"

	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API url %q: %w", baseURL, err)
		}
		api.BaseURL = u
	}

	return &Client{api: api}, nil
}

// Repository fetches repository metadata
func (c *Client) Repository(ctx context.Context, owner, repo string) (*Repository, error) {
	r, _, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}

	out := &Repository{
		Owner:       owner,
		Name:        r.GetName(),
		Description: r.GetDescription(),
		License:     r.GetLicense().GetSPDXID(),
		Homepage:    HomepageURL(owner, repo),
	}
	if out.Name == "" {
		out.Name = repo
	}

	logrus.Debugf("Repository %s/%s: license=%q description=%q", owner, repo, out.License, out.Description)
	return out, nil
}

// LatestRelease fetches the most recent published release
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	rel, _, err := c.api.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest release of %s/%s: %w", owner, repo, err)
	}

	out := &Release{
		Name:    strings.TrimSpace(rel.GetName()),
		TagName: rel.GetTagName(),
	}
	if out.Version() == "" {
		return nil, fmt.Errorf("latest release of %s/%s has neither name nor tag", owner, repo)
	}
	return out, nil
}

// HomepageURL is the web page of a repository
func HomepageURL(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s", owner, repo)
}

// ArchiveURL is the source tarball GitHub serves for a tag
func ArchiveURL(owner, repo, version string) string {
	return fmt.Sprintf("https://github.com/%s/%s/archive/%s.tar.gz", owner, repo, version)
}
