// Package fetch downloads release archives.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ralt/brewrelease/internal/utils"
)

// UserAgent is sent with every download request
const UserAgent = "brewrelease"

// DefaultTimeout bounds a single download
const DefaultTimeout = 5 * time.Minute

// Fetcher retrieves the resource at a URL into a local file
type Fetcher interface {
	// Fetch writes the resource at rawURL to dst and returns the number of bytes written
	Fetch(ctx context.Context, rawURL, dst string) (int64, error)
}

// HTTPFetcher implements Fetcher for http, https and file URLs
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets a default one with DefaultTimeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPFetcher{client: client}
}

// Fetch downloads rawURL into dst. The body is streamed to a temporary file
// next to dst which is renamed only once complete.
func (h *HTTPFetcher) Fetch(ctx context.Context, rawURL, dst string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "file":
		body, err = os.Open(filepath.FromSlash(u.Path))
		if err != nil {
			return 0, err
		}
	case "http", "https":
		body, err = h.get(ctx, u.String())
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	defer body.Close()

	logrus.Debugf("Downloading %s to %s", rawURL, dst)

	var n int64
	err = utils.AtomicWriteFrom(dst, 0644, func(w io.Writer) error {
		var copyErr error
		n, copyErr = io.Copy(w, body)
		return copyErr
	})
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}

	logrus.Debugf("Downloaded %d bytes from %s", n, rawURL)
	return n, nil
}

func (h *HTTPFetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", rawURL, resp.Status)
	}
	return resp.Body, nil
}
