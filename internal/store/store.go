package store

import (
	"context"
	"errors"

	"github.com/kk-code-lab/packsync/internal/manifest"
)

// ErrNotFound indicates no manifest record has ever been stored.
var ErrNotFound = errors.New("store: manifest not found")

// ErrCorrupt indicates a stored record exists but cannot be parsed. It is
// distinct from ErrNotFound so callers can fall back to a network fetch
// instead of treating the state as a first run.
var ErrCorrupt = errors.New("store: manifest corrupt")

// Handler persists the local manifest as durable state. Save is atomic from
// the caller's perspective: either the full new manifest is durably stored or
// the previous record remains untouched. The durable record is single-writer;
// concurrent saves from multiple processes are not coordinated.
type Handler interface {
	// Exists reports whether a stored manifest record is present. Cheap and
	// safe to poll.
	Exists() bool
	// Load returns the stored manifest, ErrNotFound if none exists, or
	// ErrCorrupt if the record does not parse.
	Load(ctx context.Context) (*manifest.Manifest, error)
	// Save durably replaces the stored manifest.
	Save(ctx context.Context, m *manifest.Manifest) error
}
