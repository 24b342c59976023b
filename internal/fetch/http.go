package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kk-code-lab/packsync/internal/clock"
	"github.com/kk-code-lab/packsync/internal/manifest"
	"github.com/kk-code-lab/packsync/internal/progress"
)

// DefaultTimeout bounds a single manifest transfer.
const DefaultTimeout = 30 * time.Second

// HTTPFetcher retrieves a wire-JSON manifest from a configured URL.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
	Clock  clock.Clock
}

// NewHTTPFetcher creates a fetcher for the given manifest URL.
func NewHTTPFetcher(url string) (*HTTPFetcher, error) {
	if url == "" {
		return nil, errors.New("fetch: manifest url required")
	}
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Fetch retrieves and decodes the remote manifest. Progress is reported
// against Content-Length when the server provides one; otherwise only the
// terminal values fire.
func (f *HTTPFetcher) Fetch(ctx context.Context, sink progress.Sink) (*manifest.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrTransport, resp.StatusCode, f.URL)
	}

	throttled := progress.Throttle(sink, f.Clock, progress.DefaultInterval)
	progress.Notify(throttled, 0)
	body := io.Reader(resp.Body)
	if resp.ContentLength > 0 {
		body = &progressReader{
			r:     resp.Body,
			total: resp.ContentLength,
			sink:  throttled,
		}
	}
	m, err := manifest.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	progress.Notify(throttled, 1)
	return m, nil
}

// progressReader reports fractional completion as bytes flow through.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	sink  progress.Sink
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		progress.Notify(p.sink, float64(p.read)/float64(p.total))
	}
	return n, err
}
