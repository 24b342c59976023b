package manifest

import "github.com/kk-code-lab/packsync/internal/progress"

// Diff computes the update plan to move from held to candidate. It is pure:
// neither manifest is mutated and the sink never influences the result.
//
// A candidate that is stale (LastUpdate not beyond held) or has no content
// groups yields an empty plan rather than an error; acceptance of out-of-order
// or rolled-back manifests would corrupt the local cache.
func Diff(held, candidate *Manifest, sink progress.Sink) *UpdatePlan {
	plan := &UpdatePlan{}
	if held == nil || candidate == nil {
		return plan
	}
	if candidate.LastUpdate <= held.LastUpdate || len(candidate.Groups) == 0 {
		progress.Notify(sink, 1)
		return plan
	}

	heldGroups := make(map[string]ContentGroup, len(held.Groups))
	for _, g := range held.Groups {
		heldGroups[g.Name] = g
	}
	candidateNames := make(map[string]struct{}, len(candidate.Groups))

	total := len(candidate.Groups)
	for i, g := range candidate.Groups {
		candidateNames[g.Name] = struct{}{}
		heldGroup, continuing := heldGroups[g.Name]
		if !continuing {
			// Wholly new group: every bundle needs a fetch.
			plan.NewGroups = append(plan.NewGroups, g)
			plan.BundlesToFetch = append(plan.BundlesToFetch, g.Bundles...)
		} else {
			plan.BundlesToFetch = append(plan.BundlesToFetch, changedBundles(heldGroup, g)...)
		}
		progress.Notify(sink, float64(i+1)/float64(total))
	}

	// Held groups missing from the candidate are removed; they contribute no
	// fetch entries.
	for _, g := range held.Groups {
		if _, ok := candidateNames[g.Name]; !ok {
			plan.RemovedGroups = append(plan.RemovedGroups, g.Name)
		}
	}
	progress.Notify(sink, 1)
	return plan
}

// changedBundles returns the candidate bundles absent from the held group or
// whose payload differs. Held bundles absent from the candidate are dropped
// silently.
func changedBundles(held, candidate ContentGroup) []Bundle {
	index := make(map[string]Bundle, len(held.Bundles))
	for _, b := range held.Bundles {
		index[b.Name] = b
	}
	var changed []Bundle
	for _, b := range candidate.Bundles {
		prev, ok := index[b.Name]
		if !ok || !prev.ContentEqual(b) {
			changed = append(changed, b)
		}
	}
	return changed
}
