package admin

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/kk-code-lab/packsync/internal/manifest"
)

type adminError struct {
	Error string `json:"error"`
}

func writeAdminError(w http.ResponseWriter, status int, msg string) {
	writeAdminJSON(w, status, adminError{Error: msg})
}

func writeAdminJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func planBundle(b manifest.Bundle) PlanBundle {
	return PlanBundle{
		Name:      b.Name,
		FetchURL:  b.FetchURL,
		Size:      b.Size,
		Hash:      hex.EncodeToString(b.Hash),
		PartIndex: b.PartIndex,
		PartTotal: b.PartCount,
	}
}

func groupResponse(g manifest.ContentGroup) GroupResponse {
	resp := GroupResponse{Name: g.Name, Bundles: make([]PlanBundle, 0, len(g.Bundles))}
	for _, b := range g.Bundles {
		resp.Bundles = append(resp.Bundles, planBundle(b))
	}
	return resp
}

func checkResponse(candidate *manifest.Manifest, plan *manifest.UpdatePlan) CheckResponse {
	resp := CheckResponse{
		CandidateMS:    candidate.LastUpdate,
		UpToDate:       plan.Empty(),
		NewGroups:      []string{},
		RemovedGroups:  []string{},
		BundlesToFetch: []PlanBundle{},
	}
	for _, g := range plan.NewGroups {
		resp.NewGroups = append(resp.NewGroups, g.Name)
	}
	resp.RemovedGroups = append(resp.RemovedGroups, plan.RemovedGroups...)
	for _, b := range plan.BundlesToFetch {
		resp.BundlesToFetch = append(resp.BundlesToFetch, planBundle(b))
		resp.FetchBytes += b.Size
	}
	return resp
}
