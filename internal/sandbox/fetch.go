package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"

	"modelforge/internal/services"
)

// DefaultMaxModuleBytes bounds a single module body.
const DefaultMaxModuleBytes = 2 << 20

// Fetcher retrieves module source for an absolute URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher loads modules over HTTP. Non-2xx responses and transport
// errors are reported as module fetch failures.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch", rawURL, err)
	}
	req.Header.Set("Accept", "application/javascript, text/javascript, */*")
	resp, err := client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch",
			fmt.Sprintf("%s returned %s", rawURL, resp.Status), nil)
	}
	return readCapped(resp.Body, rawURL, f.MaxBytes)
}

// BundleFetcher serves local bundle URLs from a directory on disk and hands
// every other URL to Next.
type BundleFetcher struct {
	Dir      string
	Resolver *Resolver
	MaxBytes int64
	Next     Fetcher
}

func (f *BundleFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch", rawURL, err)
	}
	if f.Dir == "" || f.Resolver == nil || !f.Resolver.IsBundle(u) {
		return f.next(ctx, rawURL)
	}
	name := strings.TrimPrefix(u.Path, f.Resolver.prefix)
	file, err := os.OpenInRoot(f.Dir, name)
	if errors.Is(err, fs.ErrNotExist) {
		return f.next(ctx, rawURL)
	}
	if err != nil {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch", rawURL, err)
	}
	defer file.Close()
	return readCapped(file, rawURL, f.MaxBytes)
}

func (f *BundleFetcher) next(ctx context.Context, rawURL string) (string, error) {
	if f.Next == nil {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch",
			fmt.Sprintf("%s not found in bundle directory", rawURL), nil)
	}
	return f.Next.Fetch(ctx, rawURL)
}

func readCapped(r io.Reader, rawURL string, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxModuleBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch", rawURL, err)
	}
	if int64(len(data)) > limit {
		return "", services.Wrap(services.ErrModuleFetch, "sandbox", "fetch",
			fmt.Sprintf("%s exceeds %d bytes", rawURL, limit), nil)
	}
	return string(data), nil
}
