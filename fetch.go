package particles

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// Fetcher opens the bytes of an asset path.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// FSFetcher reads assets from a file system, typically os.DirFS(root).
type FSFetcher struct {
	FS fs.FS
}

func (f FSFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	clean = strings.TrimPrefix(clean, "/")
	return f.FS.Open(clean)
}

// HTTPFetcher resolves asset paths against BaseURL. Non-2xx responses are
// reported as errors.
type HTTPFetcher struct {
	BaseURL *url.URL
	Client  *http.Client
}

func NewHTTPFetcher(base string) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &HTTPFetcher{BaseURL: u, Client: http.DefaultClient}, nil
}

type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	ref, err := url.Parse(strings.TrimPrefix(name, "/"))
	if err != nil {
		return nil, err
	}
	target := f.BaseURL.ResolveReference(ref).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: target, Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// NewFetcher picks an HTTPFetcher for http(s) roots and an FSFetcher
// for directories.
func NewFetcher(root string) (Fetcher, error) {
	if strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://") {
		return NewHTTPFetcher(root)
	}
	if root == "" {
		root = "."
	}
	return FSFetcher{FS: os.DirFS(root)}, nil
}
