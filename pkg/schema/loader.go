package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// FileLoader loads imports from disk or over http(s).
type FileLoader struct {
	client *retryablehttp.Client
}

// NewFileLoader creates a loader. Remote imports are retried up to retries
// times.
func NewFileLoader(retries int, timeout time.Duration) *FileLoader {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.Logger = nil
	c.HTTPClient.Timeout = timeout
	return &FileLoader{client: c}
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Load implements Loader. Relative refs are resolved against base.
func (l *FileLoader) Load(ctx context.Context, ref, base string) (*Document, error) {
	switch {
	case isURL(ref):
		return l.fetch(ctx, ref)
	case isURL(base):
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		u.Path = path.Join(path.Dir(u.Path), ref)
		return l.fetch(ctx, u.String())
	}

	p := ref
	if !filepath.IsAbs(p) && base != "" {
		p = filepath.Join(filepath.Dir(base), p)
	}
	return LoadFile(p)
}

func (l *FileLoader) fetch(ctx context.Context, u string) (*Document, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", u, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	doc.Path = u
	return doc, nil
}
