package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/kk-code-lab/packsync/internal/fetch"
	"github.com/kk-code-lab/packsync/internal/manifest"
	"github.com/kk-code-lab/packsync/internal/ops"
	"github.com/kk-code-lab/packsync/internal/storage/fs"
	"github.com/kk-code-lab/packsync/internal/store"
	"github.com/kk-code-lab/packsync/internal/syncer"
)

// loadHeld primes the manager from persisted state. Both server mode and the
// check/commit modes go through here so a corrupt record stops the process
// instead of being silently treated as a first run.
func loadHeld(ctx context.Context, mgr *syncer.Manager) error {
	if err := mgr.LoadManifest(ctx); err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return fmt.Errorf("persisted manifest is corrupt, refusing to continue: %w", err)
		}
		return err
	}
	return nil
}

func runOps(mode string, layout fs.Layout, h store.Handler, mgr *syncer.Manager, jsonOut bool) error {
	ctx := context.Background()
	switch mode {
	case "status":
		report, err := ops.Status(ctx, layout, h)
		if err != nil {
			return err
		}
		return printReport(report, jsonOut)
	case "verify":
		report, err := ops.Verify(ctx, layout, h)
		if err != nil {
			return err
		}
		if err := printReport(report, jsonOut); err != nil {
			return err
		}
		if report.Mismatched > 0 {
			return &exitCodeError{code: 3, msg: "cache does not match manifest", quiet: true}
		}
		return nil
	case "check":
		return runCheck(ctx, mgr, jsonOut, false)
	case "commit":
		return runCheck(ctx, mgr, jsonOut, true)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// runCheck loads the held manifest, fetches the remote candidate, and prints
// the update plan. With commit set, the candidate becomes the new held
// manifest once the plan is reported; fetching the planned bundles is the
// operator's job, driven by the printed plan.
func runCheck(ctx context.Context, mgr *syncer.Manager, jsonOut, commit bool) error {
	if err := loadHeld(ctx, mgr); err != nil {
		return err
	}
	candidate, err := mgr.FetchManifest(ctx, nil)
	if err != nil {
		if errors.Is(err, fetch.ErrTransport) {
			return &exitCodeError{code: 4, msg: err.Error()}
		}
		return err
	}
	plan, err := mgr.UpdatableBundles(candidate, nil)
	if err != nil {
		return err
	}
	if err := printPlan(mgr.Held(), candidate, plan, jsonOut); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if plan.Empty() && candidate.LastUpdate <= mgr.Held().LastUpdate {
		// Stale candidate: nothing to commit.
		return nil
	}
	return mgr.CommitManifest(ctx, candidate)
}

type planOutput struct {
	HeldMS         uint64   `json:"held_ms"`
	CandidateMS    uint64   `json:"candidate_ms"`
	UpToDate       bool     `json:"up_to_date"`
	NewGroups      []string `json:"new_groups"`
	RemovedGroups  []string `json:"removed_groups"`
	BundlesToFetch []string `json:"bundles_to_fetch"`
	FetchBytes     uint64   `json:"fetch_bytes"`
}

func printPlan(held, candidate *manifest.Manifest, plan *manifest.UpdatePlan, jsonOut bool) error {
	out := planOutput{
		HeldMS:         held.LastUpdate,
		CandidateMS:    candidate.LastUpdate,
		UpToDate:       plan.Empty(),
		NewGroups:      []string{},
		RemovedGroups:  []string{},
		BundlesToFetch: []string{},
	}
	for _, g := range plan.NewGroups {
		out.NewGroups = append(out.NewGroups, g.Name)
	}
	out.RemovedGroups = append(out.RemovedGroups, plan.RemovedGroups...)
	for _, b := range plan.BundlesToFetch {
		out.BundlesToFetch = append(out.BundlesToFetch, b.Name)
		out.FetchBytes += b.Size
	}
	if jsonOut {
		return writeJSON(out)
	}
	if out.UpToDate {
		fmt.Printf("up to date: held=%d candidate=%d\n", out.HeldMS, out.CandidateMS)
		return nil
	}
	fmt.Printf("update available: held=%d candidate=%d new_groups=%d removed_groups=%d bundles=%d bytes=%d\n",
		out.HeldMS, out.CandidateMS, len(out.NewGroups), len(out.RemovedGroups), len(out.BundlesToFetch), out.FetchBytes)
	for _, name := range out.BundlesToFetch {
		fmt.Printf("  fetch %s\n", name)
	}
	for _, name := range out.RemovedGroups {
		fmt.Printf("  remove group %s\n", name)
	}
	return nil
}

func printReport(report *ops.Report, jsonOut bool) error {
	if report == nil {
		return nil
	}
	if jsonOut {
		return writeJSON(report)
	}
	fmt.Printf("mode=%s manifest_present=%t groups=%d bundles=%d verified=%d missing=%d mismatched=%d errors=%d\n",
		report.Mode, report.ManifestPresent, report.Groups, report.Bundles, report.Verified, report.Missing, report.Mismatched, report.Errors)
	return nil
}

func printModeHelp(mode string) {
	switch mode {
	case "server":
		fmt.Println("Mode server: run the admin HTTP API.")
		fmt.Println("Flags: -addr, -data-dir, -manifest-url, -store, -admin-token")
	case "status":
		fmt.Println("Mode status: report held manifest and cache counts.")
	case "check":
		fmt.Println("Mode check: fetch the remote manifest and print the update plan.")
		fmt.Println("Flags: -manifest-url, -data-dir, -json")
	case "commit":
		fmt.Println("Mode commit: fetch, print the plan, and commit the candidate manifest.")
		fmt.Println("Flags: -manifest-url, -data-dir, -store, -json")
	case "verify":
		fmt.Println("Mode verify: hash cached bundles against the held manifest.")
		fmt.Println("Exit code 3 when the cache does not match.")
	default:
		fmt.Printf("no help for mode %q\n", mode)
	}
}
