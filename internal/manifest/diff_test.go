package manifest

import "testing"

func bundle(name string, size uint64, hash ...byte) Bundle {
	return Bundle{Name: name, FetchURL: "http://cdn/" + name, Size: size, Hash: hash, PartCount: 1}
}

func TestDiffStaleCandidate(t *testing.T) {
	held := &Manifest{LastUpdate: 100, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 1, 0x01)}},
	}}
	candidate := &Manifest{LastUpdate: 100, Groups: []ContentGroup{
		{Name: "g2", Bundles: []Bundle{bundle("b2", 2, 0x02)}},
	}}

	plan := Diff(held, candidate, nil)
	if !plan.Empty() {
		t.Fatalf("stale candidate must yield empty plan: %+v", plan)
	}

	candidate.LastUpdate = 50
	if plan := Diff(held, candidate, nil); !plan.Empty() {
		t.Fatalf("older candidate must yield empty plan: %+v", plan)
	}
}

func TestDiffEmptyCandidate(t *testing.T) {
	held := &Manifest{LastUpdate: 1}
	candidate := &Manifest{LastUpdate: 2}
	if plan := Diff(held, candidate, nil); !plan.Empty() {
		t.Fatalf("empty candidate must yield empty plan")
	}
}

func TestDiffAdditive(t *testing.T) {
	b1 := bundle("b1", 1, 0x01)
	b2 := bundle("b2", 2, 0x02)
	b3 := bundle("b3", 3, 0x03)
	held := &Manifest{LastUpdate: 1, Groups: []ContentGroup{
		{Name: "groupA", Bundles: []Bundle{b1}},
	}}
	candidate := &Manifest{LastUpdate: 2, Groups: []ContentGroup{
		{Name: "groupA", Bundles: []Bundle{b1, b2}},
		{Name: "groupB", Bundles: []Bundle{b3}},
	}}

	plan := Diff(held, candidate, nil)
	if len(plan.NewGroups) != 1 || plan.NewGroups[0].Name != "groupB" {
		t.Fatalf("new groups mismatch: %+v", plan.NewGroups)
	}
	if len(plan.RemovedGroups) != 0 {
		t.Fatalf("unexpected removals: %v", plan.RemovedGroups)
	}
	if len(plan.BundlesToFetch) != 2 || plan.BundlesToFetch[0].Name != "b2" || plan.BundlesToFetch[1].Name != "b3" {
		t.Fatalf("bundles to fetch mismatch: %+v", plan.BundlesToFetch)
	}
}

func TestDiffChangeDetection(t *testing.T) {
	held := &Manifest{LastUpdate: 1, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 1, 0x01)}},
	}}
	changed := bundle("b1", 1, 0xff)
	candidate := &Manifest{LastUpdate: 2, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{changed}},
	}}

	plan := Diff(held, candidate, nil)
	if len(plan.BundlesToFetch) != 1 || plan.BundlesToFetch[0].Name != "b1" {
		t.Fatalf("changed bundle not flagged: %+v", plan.BundlesToFetch)
	}
	if !equalBytes(plan.BundlesToFetch[0].Hash, changed.Hash) {
		t.Fatalf("plan must carry the candidate descriptor")
	}
}

func TestDiffSizeChangeDetection(t *testing.T) {
	held := &Manifest{LastUpdate: 1, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 1, 0x01)}},
	}}
	candidate := &Manifest{LastUpdate: 2, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 99, 0x01)}},
	}}
	if plan := Diff(held, candidate, nil); len(plan.BundlesToFetch) != 1 {
		t.Fatalf("size change not flagged: %+v", plan.BundlesToFetch)
	}
}

func TestDiffRemovalDetection(t *testing.T) {
	held := &Manifest{LastUpdate: 1, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 1, 0x01)}},
		{Name: "g2", Bundles: []Bundle{bundle("b2", 2, 0x02)}},
	}}
	candidate := &Manifest{LastUpdate: 2, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 1, 0x01)}},
	}}

	plan := Diff(held, candidate, nil)
	if len(plan.RemovedGroups) != 1 || plan.RemovedGroups[0] != "g2" {
		t.Fatalf("removed groups mismatch: %v", plan.RemovedGroups)
	}
	if len(plan.BundlesToFetch) != 0 {
		t.Fatalf("removed group must contribute no fetches: %+v", plan.BundlesToFetch)
	}
}

func TestDiffDroppedBundleNotFetched(t *testing.T) {
	held := &Manifest{LastUpdate: 1, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 1, 0x01), bundle("b2", 2, 0x02)}},
	}}
	candidate := &Manifest{LastUpdate: 2, Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{bundle("b1", 1, 0x01)}},
	}}
	if plan := Diff(held, candidate, nil); !plan.Empty() {
		t.Fatalf("dropping a bundle must not schedule fetches: %+v", plan)
	}
}

func TestDiffOrdering(t *testing.T) {
	held := &Manifest{LastUpdate: 1}
	candidate := &Manifest{LastUpdate: 2, Groups: []ContentGroup{
		{Name: "g2", Bundles: []Bundle{bundle("z", 1, 0x01), bundle("a", 2, 0x02)}},
		{Name: "g1", Bundles: []Bundle{bundle("m", 3, 0x03)}},
	}}

	plan := Diff(held, candidate, nil)
	got := make([]string, 0, len(plan.BundlesToFetch))
	for _, b := range plan.BundlesToFetch {
		got = append(got, b.Name)
	}
	want := []string{"z", "a", "m"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
}

func TestDiffProgressReachesOne(t *testing.T) {
	var last float64
	sink := func(f float64) { last = f }
	held := &Manifest{LastUpdate: 1}
	candidate := &Manifest{LastUpdate: 2, Groups: []ContentGroup{{Name: "g1"}}}

	Diff(held, candidate, sink)
	if last != 1 {
		t.Fatalf("progress must finish at 1, got %v", last)
	}

	// Stale path also terminates progress.
	last = 0
	Diff(candidate, held, sink)
	if last != 1 {
		t.Fatalf("stale path progress must finish at 1, got %v", last)
	}
}
