// Package syncer owns the authoritative local manifest and orchestrates the
// load, fetch, diff, and commit cycle that keeps a content cache coherent
// with a published manifest version.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kk-code-lab/packsync/internal/clock"
	"github.com/kk-code-lab/packsync/internal/fetch"
	"github.com/kk-code-lab/packsync/internal/manifest"
	"github.com/kk-code-lab/packsync/internal/progress"
	"github.com/kk-code-lab/packsync/internal/store"
)

// ErrNotFound indicates a bundle or content group lookup missed.
var ErrNotFound = errors.New("syncer: not found")

// ErrInvalidCandidate indicates a candidate manifest without a content groups
// collection was offered for diffing.
var ErrInvalidCandidate = errors.New("syncer: candidate missing content groups")

// ErrStaleCandidate indicates a commit was rejected because the candidate's
// timestamp does not exceed the held manifest's. Accepting it would roll the
// durable state back to an older version.
var ErrStaleCandidate = errors.New("syncer: stale candidate")

// Options configures a Manager.
type Options struct {
	Fetcher fetch.Fetcher
	Store   store.Handler
	Clock   clock.Clock
}

// Manager holds the single authoritative manifest. The held manifest is
// treated as immutable; commit swaps the pointer under the write lock, so
// readers never observe a half-applied update.
//
// LoadManifest must complete before the first CommitManifest, or a commit can
// clobber never-loaded persisted state. That ordering is the caller's
// contract; the Manager does not enforce it.
type Manager struct {
	mu      sync.RWMutex
	held    *manifest.Manifest
	fetcher fetch.Fetcher
	store   store.Handler
	clk     clock.Clock
}

// New creates a Manager with an empty held manifest.
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("syncer: store required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Manager{
		held:    &manifest.Manifest{},
		fetcher: opts.Fetcher,
		store:   opts.Store,
		clk:     clk,
	}, nil
}

// LoadManifest replaces the held manifest with persisted state. A missing
// record is not an error: the held manifest stays at its empty default.
// A corrupt record propagates so the caller can decide between re-fetching
// and treating the state as a first run.
func (m *Manager) LoadManifest(ctx context.Context) error {
	if !m.store.Exists() {
		return nil
	}
	loaded, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	m.mu.Lock()
	m.held = loaded
	m.mu.Unlock()
	return nil
}

// FetchManifest retrieves a candidate manifest from the remote source.
// Failures propagate unchanged; the caller may retry.
func (m *Manager) FetchManifest(ctx context.Context, sink progress.Sink) (*manifest.Manifest, error) {
	if m.fetcher == nil {
		return nil, errors.New("syncer: no fetcher configured")
	}
	return m.fetcher.Fetch(ctx, sink)
}

// UpdatableBundles diffs the candidate against the held manifest and returns
// the update plan. A stale or empty candidate yields an empty plan, not an
// error. A candidate with a nil content groups collection is rejected.
func (m *Manager) UpdatableBundles(candidate *manifest.Manifest, sink progress.Sink) (*manifest.UpdatePlan, error) {
	if candidate == nil || candidate.Groups == nil {
		return nil, ErrInvalidCandidate
	}
	throttled := progress.Throttle(sink, m.clk, progress.DefaultInterval)
	m.mu.RLock()
	held := m.held
	m.mu.RUnlock()
	return manifest.Diff(held, candidate, throttled), nil
}

// CommitManifest persists the candidate and, only on durable success, makes
// it the held manifest. This is the only path that replaces the held
// manifest after load.
//
// A candidate whose timestamp does not exceed the held one is rejected with
// ErrStaleCandidate, unless it is identical to the held manifest, in which
// case the commit is an idempotent no-op.
func (m *Manager) CommitManifest(ctx context.Context, candidate *manifest.Manifest) error {
	if candidate == nil {
		return ErrInvalidCandidate
	}
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if candidate.LastUpdate <= m.held.LastUpdate {
		if candidate.Equal(m.held) {
			return nil
		}
		return fmt.Errorf("%w: candidate %d, held %d", ErrStaleCandidate, candidate.LastUpdate, m.held.LastUpdate)
	}
	if err := m.store.Save(ctx, candidate); err != nil {
		return err
	}
	m.held = candidate
	return nil
}

// BundleInfo looks up a bundle by name across the held manifest's groups.
func (m *Manager) BundleInfo(name string) (manifest.Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.held.Bundle(name); ok {
		return b, nil
	}
	return manifest.Bundle{}, fmt.Errorf("%w: bundle %q", ErrNotFound, name)
}

// GroupNames returns the held manifest's group names in manifest order.
func (m *Manager) GroupNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.held.GroupNames()
}

// GroupInfo looks up a content group by name.
func (m *Manager) GroupInfo(name string) (manifest.ContentGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.held.Group(name); ok {
		return g, nil
	}
	return manifest.ContentGroup{}, fmt.Errorf("%w: group %q", ErrNotFound, name)
}

// Held returns the current manifest snapshot. Callers must not mutate it.
func (m *Manager) Held() *manifest.Manifest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.held
}
