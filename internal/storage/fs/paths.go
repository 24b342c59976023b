package fs

import "path/filepath"

// Layout defines the on-disk directory layout for synchronized content.
type Layout struct {
	Root         string
	BundlesDir   string
	ManifestPath string
}

// NewLayout builds a default layout under the given root.
func NewLayout(root string) Layout {
	return Layout{
		Root:         root,
		BundlesDir:   filepath.Join(root, "bundles"),
		ManifestPath: filepath.Join(root, "manifest.bin"),
	}
}

// BundlePath returns the cache path for a bundle payload.
func (l Layout) BundlePath(bundleName string) string {
	return filepath.Join(l.BundlesDir, bundleName)
}
