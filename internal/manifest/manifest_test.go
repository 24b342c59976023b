package manifest

import "testing"

func TestContentEqual(t *testing.T) {
	a := Bundle{Name: "b1", FetchURL: "http://a/b1", Size: 10, Hash: []byte{1, 2}}
	b := Bundle{Name: "b1", FetchURL: "http://b/b1", Size: 10, Hash: []byte{1, 2}}
	if !a.ContentEqual(b) {
		t.Fatalf("url change alone must not invalidate content")
	}
	b.Hash = []byte{9, 9}
	if a.ContentEqual(b) {
		t.Fatalf("hash change must invalidate content")
	}
	b.Hash = []byte{1, 2}
	b.Size = 11
	if a.ContentEqual(b) {
		t.Fatalf("size change must invalidate content")
	}
}

func TestManifestLookups(t *testing.T) {
	m := &Manifest{
		LastUpdate: 1,
		Groups: []ContentGroup{
			{Name: "level-1", Bundles: []Bundle{{Name: "terrain"}, {Name: "props"}}},
			{Name: "level-2", Bundles: []Bundle{{Name: "boss"}}},
		},
	}
	if _, ok := m.Group("level-2"); !ok {
		t.Fatalf("Group: level-2 missing")
	}
	if _, ok := m.Group("level-3"); ok {
		t.Fatalf("Group: unexpected hit")
	}
	if b, ok := m.Bundle("boss"); !ok || b.Name != "boss" {
		t.Fatalf("Bundle: boss missing")
	}
	if _, ok := m.Bundle("nope"); ok {
		t.Fatalf("Bundle: unexpected hit")
	}
	names := m.GroupNames()
	if len(names) != 2 || names[0] != "level-1" || names[1] != "level-2" {
		t.Fatalf("GroupNames order mismatch: %v", names)
	}
	if m.BundleCount() != 3 {
		t.Fatalf("BundleCount: got %d", m.BundleCount())
	}
}

func TestValidate(t *testing.T) {
	good := &Manifest{Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{{Name: "b1"}, {Name: "b2"}}},
		{Name: "g2"},
	}}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	dupGroup := &Manifest{Groups: []ContentGroup{{Name: "g1"}, {Name: "g1"}}}
	if err := dupGroup.Validate(); err == nil {
		t.Fatalf("expected duplicate group error")
	}
	dupBundle := &Manifest{Groups: []ContentGroup{
		{Name: "g1", Bundles: []Bundle{{Name: "b1"}, {Name: "b1"}}},
	}}
	if err := dupBundle.Validate(); err == nil {
		t.Fatalf("expected duplicate bundle error")
	}
	emptyName := &Manifest{Groups: []ContentGroup{{Name: ""}}}
	if err := emptyName.Validate(); err == nil {
		t.Fatalf("expected empty group name error")
	}
}

func TestValidateRejectsPathTraversalNames(t *testing.T) {
	for _, name := range []string{"../escape", "a/b", `a\b`, "..", "."} {
		m := &Manifest{Groups: []ContentGroup{
			{Name: "g", Bundles: []Bundle{{Name: name}}},
		}}
		if err := m.Validate(); err == nil {
			t.Fatalf("bundle name %q must be rejected", name)
		}
	}
	dotted := &Manifest{Groups: []ContentGroup{
		{Name: "g", Bundles: []Bundle{{Name: "props.part2.pak"}}},
	}}
	if err := dotted.Validate(); err != nil {
		t.Fatalf("dotted filename must be accepted: %v", err)
	}
}

func TestManifestEqual(t *testing.T) {
	a := &Manifest{
		LastUpdate: 5,
		Groups: []ContentGroup{
			{Name: "g", Bundles: []Bundle{{Name: "b", FetchURL: "http://cdn/b", Size: 1, Hash: []byte{1}, PartCount: 1}}},
		},
	}
	b := &Manifest{
		LastUpdate: 5,
		Groups: []ContentGroup{
			{Name: "g", Bundles: []Bundle{{Name: "b", FetchURL: "http://cdn/b", Size: 1, Hash: []byte{1}, PartCount: 1}}},
		},
	}
	if !a.Equal(b) {
		t.Fatalf("identical manifests must compare equal")
	}
	b.Groups[0].Bundles[0].Hash = []byte{2}
	if a.Equal(b) {
		t.Fatalf("hash change must break equality")
	}
	if a.Equal(nil) {
		t.Fatalf("nil must not equal a manifest")
	}
}

func TestUpdatePlanEmpty(t *testing.T) {
	plan := &UpdatePlan{}
	if !plan.Empty() {
		t.Fatalf("zero plan must be empty")
	}
	plan.RemovedGroups = []string{"g1"}
	if plan.Empty() {
		t.Fatalf("plan with removals is not empty")
	}
}
