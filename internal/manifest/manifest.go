package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Bundle describes one addressable unit of downloadable content. Bundles
// split into parts carry the part index and total part count.
type Bundle struct {
	Name      string
	FetchURL  string
	Size      uint64
	Hash      []byte
	PartIndex int32
	PartCount int32
}

// ContentEqual reports whether two bundles carry the same payload. Only size
// and hash participate; a changed fetch URL alone does not invalidate content.
func (b Bundle) ContentEqual(other Bundle) bool {
	return b.Size == other.Size && bytes.Equal(b.Hash, other.Hash)
}

// ContentGroup is a named partition of bundles, e.g. a level or feature.
// Bundle names are unique within a group and order is preserved.
type ContentGroup struct {
	Name    string
	Bundles []Bundle
}

// Bundle returns the named bundle within the group.
func (g ContentGroup) Bundle(name string) (Bundle, bool) {
	for _, b := range g.Bundles {
		if b.Name == name {
			return b, true
		}
	}
	return Bundle{}, false
}

// Manifest is a versioned description of all content groups available for a
// build. LastUpdate is epoch milliseconds assigned by the publisher; a
// manifest whose LastUpdate does not exceed the held one is stale.
type Manifest struct {
	LastUpdate uint64
	Groups     []ContentGroup
}

// Group returns the named content group.
func (m *Manifest) Group(name string) (ContentGroup, bool) {
	for _, g := range m.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return ContentGroup{}, false
}

// Bundle returns the first bundle with the given name across all groups.
func (m *Manifest) Bundle(name string) (Bundle, bool) {
	for _, g := range m.Groups {
		if b, ok := g.Bundle(name); ok {
			return b, true
		}
	}
	return Bundle{}, false
}

// GroupNames returns group names in manifest order.
func (m *Manifest) GroupNames() []string {
	names := make([]string, 0, len(m.Groups))
	for _, g := range m.Groups {
		names = append(names, g.Name)
	}
	return names
}

// BundleCount returns the total number of bundles across all groups.
func (m *Manifest) BundleCount() int {
	total := 0
	for _, g := range m.Groups {
		total += len(g.Bundles)
	}
	return total
}

// Equal reports whether two manifests are field-for-field identical.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.LastUpdate != other.LastUpdate || len(m.Groups) != len(other.Groups) {
		return false
	}
	for i, g := range m.Groups {
		og := other.Groups[i]
		if g.Name != og.Name || len(g.Bundles) != len(og.Bundles) {
			return false
		}
		for j, b := range g.Bundles {
			ob := og.Bundles[j]
			if b.Name != ob.Name || b.FetchURL != ob.FetchURL ||
				b.Size != ob.Size || !bytes.Equal(b.Hash, ob.Hash) ||
				b.PartIndex != ob.PartIndex || b.PartCount != ob.PartCount {
				return false
			}
		}
	}
	return true
}

// Validate checks structural invariants: non-empty names, group names unique
// within the manifest, bundle names unique within each group. Bundle names
// double as cache filenames, so names carrying path separators or directory
// references are rejected.
func (m *Manifest) Validate() error {
	if m == nil {
		return errors.New("manifest: nil manifest")
	}
	groupSeen := make(map[string]struct{}, len(m.Groups))
	for _, g := range m.Groups {
		if g.Name == "" {
			return errors.New("manifest: empty group name")
		}
		if _, ok := groupSeen[g.Name]; ok {
			return fmt.Errorf("manifest: duplicate group %q", g.Name)
		}
		groupSeen[g.Name] = struct{}{}
		bundleSeen := make(map[string]struct{}, len(g.Bundles))
		for _, b := range g.Bundles {
			if b.Name == "" {
				return fmt.Errorf("manifest: empty bundle name in group %q", g.Name)
			}
			if _, ok := bundleSeen[b.Name]; ok {
				return fmt.Errorf("manifest: duplicate bundle %q in group %q", b.Name, g.Name)
			}
			if strings.ContainsAny(b.Name, `/\`) || b.Name == "." || b.Name == ".." {
				return fmt.Errorf("manifest: bundle name %q is not a valid cache filename", b.Name)
			}
			bundleSeen[b.Name] = struct{}{}
		}
	}
	return nil
}

// UpdatePlan is the diff engine output: what must be fetched, added, and
// removed to move the local cache from one manifest version to another.
// A plan is immutable once returned and is never partially applied.
type UpdatePlan struct {
	NewGroups      []ContentGroup
	RemovedGroups  []string
	BundlesToFetch []Bundle
}

// Empty reports whether the plan requires no work.
func (p *UpdatePlan) Empty() bool {
	return len(p.NewGroups) == 0 && len(p.RemovedGroups) == 0 && len(p.BundlesToFetch) == 0
}
