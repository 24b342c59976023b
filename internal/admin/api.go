package admin

// StatusResponse summarizes the held manifest.
type StatusResponse struct {
	LastUpdateMS uint64   `json:"last_update_ms"`
	Groups       int      `json:"groups"`
	Bundles      int      `json:"bundles"`
	GroupNames   []string `json:"group_names"`
	StoredRecord bool     `json:"stored_record"`
}

// CheckResponse carries an update plan computed against the held manifest.
type CheckResponse struct {
	CandidateMS    uint64       `json:"candidate_ms"`
	UpToDate       bool         `json:"up_to_date"`
	NewGroups      []string     `json:"new_groups"`
	RemovedGroups  []string     `json:"removed_groups"`
	BundlesToFetch []PlanBundle `json:"bundles_to_fetch"`
	FetchBytes     uint64       `json:"fetch_bytes"`
}

// PlanBundle is one fetch entry in a check response.
type PlanBundle struct {
	Name      string `json:"name"`
	FetchURL  string `json:"fetch_url"`
	Size      uint64 `json:"size"`
	Hash      string `json:"hash"`
	PartIndex int32  `json:"part_index"`
	PartTotal int32  `json:"part_total"`
}

// CommitResponse confirms a committed manifest.
type CommitResponse struct {
	Committed    bool   `json:"committed"`
	LastUpdateMS uint64 `json:"last_update_ms"`
	Groups       int    `json:"groups"`
	Bundles      int    `json:"bundles"`
}

// GroupsRequest selects between listing group names and fetching one group.
type GroupsRequest struct {
	Action string `json:"action"`
	Name   string `json:"name,omitempty"`
}

// GroupResponse describes one content group.
type GroupResponse struct {
	Name    string       `json:"name"`
	Bundles []PlanBundle `json:"bundles"`
}

// GroupsListResponse lists group names in manifest order.
type GroupsListResponse struct {
	Groups []string `json:"groups"`
}

// BundleRequest looks up a bundle by name.
type BundleRequest struct {
	Name string `json:"name"`
}
