package fetch

import (
	"context"
	"errors"

	"github.com/kk-code-lab/packsync/internal/manifest"
	"github.com/kk-code-lab/packsync/internal/progress"
)

// ErrTransport indicates the remote manifest could not be retrieved or
// decoded. The failure is recoverable; retry policy belongs to the caller.
var ErrTransport = errors.New("fetch: transport failure")

// Fetcher retrieves a remote manifest. Implementations report fractional
// progress through the sink while the transfer runs and never return a
// partial manifest: on failure the result is nil. Fetchers do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, sink progress.Sink) (*manifest.Manifest, error)
}
