package manifest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Wire JSON schema shared by the remote fetch contract and the admin API.
// Hashes travel hex-encoded.

type wireManifest struct {
	LastUpdateMS  uint64      `json:"last_update_ms"`
	ContentGroups []wireGroup `json:"content_groups"`
}

type wireGroup struct {
	Name    string       `json:"name"`
	Bundles []wireBundle `json:"bundles"`
}

type wireBundle struct {
	Name      string `json:"name"`
	FetchURL  string `json:"fetch_url"`
	Size      uint64 `json:"size"`
	Hash      string `json:"hash"`
	PartIndex int32  `json:"part_index"`
	PartTotal int32  `json:"part_total"`
}

// EncodeJSON writes the manifest in wire form.
func EncodeJSON(w io.Writer, m *Manifest) error {
	if m == nil {
		return errors.New("manifest: nil manifest")
	}
	out := wireManifest{
		LastUpdateMS:  m.LastUpdate,
		ContentGroups: make([]wireGroup, 0, len(m.Groups)),
	}
	for _, g := range m.Groups {
		wg := wireGroup{Name: g.Name, Bundles: make([]wireBundle, 0, len(g.Bundles))}
		for _, b := range g.Bundles {
			wg.Bundles = append(wg.Bundles, wireBundle{
				Name:      b.Name,
				FetchURL:  b.FetchURL,
				Size:      b.Size,
				Hash:      hex.EncodeToString(b.Hash),
				PartIndex: b.PartIndex,
				PartTotal: b.PartCount,
			})
		}
		out.ContentGroups = append(out.ContentGroups, wg)
	}
	enc := json.NewEncoder(w)
	return enc.Encode(&out)
}

// DecodeJSON reads a wire-form manifest and validates the logical schema.
// A document without a content_groups array is rejected.
func DecodeJSON(r io.Reader) (*Manifest, error) {
	var in wireManifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("manifest: decode wire json: %w", err)
	}
	if in.ContentGroups == nil {
		return nil, errors.New("manifest: missing content_groups")
	}
	m := &Manifest{
		LastUpdate: in.LastUpdateMS,
		Groups:     make([]ContentGroup, 0, len(in.ContentGroups)),
	}
	for _, wg := range in.ContentGroups {
		g := ContentGroup{Name: wg.Name, Bundles: make([]Bundle, 0, len(wg.Bundles))}
		for _, wb := range wg.Bundles {
			hash, err := hex.DecodeString(wb.Hash)
			if err != nil {
				return nil, fmt.Errorf("manifest: bundle %q: invalid hash: %w", wb.Name, err)
			}
			if len(hash) == 0 {
				hash = nil
			}
			g.Bundles = append(g.Bundles, Bundle{
				Name:      wb.Name,
				FetchURL:  wb.FetchURL,
				Size:      wb.Size,
				Hash:      hash,
				PartIndex: wb.PartIndex,
				PartCount: wb.PartTotal,
			})
		}
		m.Groups = append(m.Groups, g)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
