package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"github.com/kk-code-lab/packsync/internal/clock"
	"github.com/kk-code-lab/packsync/internal/manifest"
	"github.com/kk-code-lab/packsync/internal/storage/fs"
	"github.com/kk-code-lab/packsync/internal/store"
)

// Report summarizes an ops run.
type Report struct {
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Mode            string    `json:"mode"`
	ManifestPresent bool      `json:"manifest_present"`
	LastUpdateMS    uint64    `json:"last_update_ms,omitempty"`
	Groups          int       `json:"groups"`
	Bundles         int       `json:"bundles"`
	CachedFiles     int       `json:"cached_files,omitempty"`
	Verified        int       `json:"verified,omitempty"`
	Missing         int       `json:"missing,omitempty"`
	Mismatched      int       `json:"mismatched,omitempty"`
	VerifiedBytes   int64     `json:"verified_bytes,omitempty"`
	Errors          int       `json:"errors"`
	ErrorSample     []string  `json:"error_sample,omitempty"`
	MissingBundles  []string  `json:"missing_bundles,omitempty"`
	MismatchBundles []string  `json:"mismatch_bundles,omitempty"`
}

// Status collects basic counts about the held manifest and bundle cache.
// The handler decides where the manifest record lives; a nil handler reads
// the default manifest file under the layout.
func Status(ctx context.Context, layout fs.Layout, h store.Handler) (*Report, error) {
	report := &Report{Mode: "status", StartedAt: now()}
	man, err := loadManifest(ctx, layout, h)
	if err != nil {
		return nil, err
	}
	if man != nil {
		report.ManifestPresent = true
		report.LastUpdateMS = man.LastUpdate
		report.Groups = len(man.Groups)
		report.Bundles = man.BundleCount()
	}
	cached, err := listFiles(layout.BundlesDir)
	if err != nil {
		return nil, err
	}
	report.CachedFiles = len(cached)
	report.FinishedAt = now()
	return report, nil
}

// Verify hashes every cached bundle payload against the held manifest.
// Bundle hashes are BLAKE3-256 of the payload. Missing files are counted
// separately from mismatches: a missing payload may simply not have been
// downloaded yet, while a mismatch means the cache holds stale or damaged
// content. Verify never mutates the cache.
func Verify(ctx context.Context, layout fs.Layout, h store.Handler) (*Report, error) {
	report := &Report{Mode: "verify", StartedAt: now()}
	man, err := loadManifest(ctx, layout, h)
	if err != nil {
		return nil, err
	}
	if man == nil {
		report.FinishedAt = now()
		return report, nil
	}
	report.ManifestPresent = true
	report.LastUpdateMS = man.LastUpdate
	report.Groups = len(man.Groups)
	report.Bundles = man.BundleCount()

	addError := func(err error) {
		report.Errors++
		if len(report.ErrorSample) < 5 {
			report.ErrorSample = append(report.ErrorSample, err.Error())
		}
	}

	for _, g := range man.Groups {
		for _, b := range g.Bundles {
			path := layout.BundlePath(b.Name)
			sum, size, err := hashFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					report.Missing++
					if len(report.MissingBundles) < 10 {
						report.MissingBundles = append(report.MissingBundles, b.Name)
					}
					continue
				}
				addError(err)
				continue
			}
			if uint64(size) != b.Size || !hashMatches(sum, b.Hash) {
				report.Mismatched++
				if len(report.MismatchBundles) < 10 {
					report.MismatchBundles = append(report.MismatchBundles, b.Name)
				}
				addError(fmt.Errorf("bundle %s: cache does not match manifest", b.Name))
				continue
			}
			report.Verified++
			report.VerifiedBytes += size
		}
	}
	report.FinishedAt = now()
	return report, nil
}

// loadManifest reads the manifest through the configured store handler so
// ops runs see the same record the syncer persists, whichever backend is in
// use. A nil manifest with nil error means no record has been stored yet.
func loadManifest(ctx context.Context, layout fs.Layout, h store.Handler) (*manifest.Manifest, error) {
	if h == nil {
		var err error
		h, err = store.NewFileStore(layout.ManifestPath, nil)
		if err != nil {
			return nil, err
		}
	}
	man, err := h.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ops: load manifest: %w", err)
	}
	return man, nil
}

func hashFile(path string) ([32]byte, int64, error) {
	var sum [32]byte
	file, err := os.Open(path)
	if err != nil {
		return sum, 0, err
	}
	defer func() { _ = file.Close() }()
	hasher := blake3.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return sum, 0, err
	}
	copy(sum[:], hasher.Sum(nil))
	return sum, size, nil
}

func hashMatches(sum [32]byte, want []byte) bool {
	if len(want) != len(sum) {
		return false
	}
	for i := range sum {
		if sum[i] != want[i] {
			return false
		}
	}
	return true
}

// Report timestamps come from the shared clock so they line up with the
// admin request log.
func now() time.Time {
	return clock.RealClock{}.Now()
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}
