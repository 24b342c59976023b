package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kk-code-lab/packsync/internal/fetch"
	"github.com/kk-code-lab/packsync/internal/manifest"
	"github.com/kk-code-lab/packsync/internal/ops"
	"github.com/kk-code-lab/packsync/internal/storage/fs"
	"github.com/kk-code-lab/packsync/internal/store"
	"github.com/kk-code-lab/packsync/internal/syncer"
)

const tokenHeader = "X-Packsync-Admin-Token"

// maxCommitBody caps an inbound manifest document (8 MiB).
const maxCommitBody = 8 << 20

type Handler struct {
	Layout    fs.Layout
	Manager   *syncer.Manager
	Store     store.Handler
	AuthToken string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Manager == nil {
		writeAdminError(w, http.StatusInternalServerError, "syncer not initialized")
		return
	}
	if !h.authorize(r) {
		writeAdminError(w, http.StatusForbidden, "admin token required")
		return
	}
	if r.Method != http.MethodPost {
		writeAdminError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch r.URL.Path {
	case "/admin/status":
		h.handleStatus(w, r)
	case "/admin/sync/check":
		h.handleSyncCheck(w, r)
	case "/admin/sync/commit":
		h.handleSyncCommit(w, r)
	case "/admin/groups":
		h.handleGroups(w, r)
	case "/admin/bundles":
		h.handleBundles(w, r)
	case "/admin/verify":
		h.handleVerify(w, r)
	default:
		writeAdminError(w, http.StatusNotFound, "unknown admin endpoint")
	}
}

func (h *Handler) authorize(r *http.Request) bool {
	if h.AuthToken == "" {
		return false
	}
	token := strings.TrimSpace(r.Header.Get(tokenHeader))
	return token != "" && token == h.AuthToken
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	held := h.Manager.Held()
	writeAdminJSON(w, http.StatusOK, StatusResponse{
		LastUpdateMS: held.LastUpdate,
		Groups:       len(held.Groups),
		Bundles:      held.BundleCount(),
		GroupNames:   held.GroupNames(),
		StoredRecord: h.Store != nil && h.Store.Exists(),
	})
}

// handleSyncCheck fetches the remote candidate and diffs it against the held
// manifest. A transport failure is reported distinctly from an empty plan so
// operators can tell "network down" from "already current".
func (h *Handler) handleSyncCheck(w http.ResponseWriter, r *http.Request) {
	candidate, err := h.Manager.FetchManifest(r.Context(), nil)
	if err != nil {
		if errors.Is(err, fetch.ErrTransport) {
			writeAdminError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	plan, err := h.Manager.UpdatableBundles(candidate, nil)
	if err != nil {
		writeAdminError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeAdminJSON(w, http.StatusOK, checkResponse(candidate, plan))
}

func (h *Handler) handleSyncCommit(w http.ResponseWriter, r *http.Request) {
	candidate, err := manifest.DecodeJSON(http.MaxBytesReader(w, r.Body, maxCommitBody))
	if err != nil {
		writeAdminError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Manager.CommitManifest(r.Context(), candidate); err != nil {
		if errors.Is(err, syncer.ErrInvalidCandidate) {
			writeAdminError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, syncer.ErrStaleCandidate) {
			writeAdminError(w, http.StatusConflict, err.Error())
			return
		}
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAdminJSON(w, http.StatusOK, CommitResponse{
		Committed:    true,
		LastUpdateMS: candidate.LastUpdate,
		Groups:       len(candidate.Groups),
		Bundles:      candidate.BundleCount(),
	})
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	var req GroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	switch req.Action {
	case "", "list":
		names := h.Manager.GroupNames()
		if names == nil {
			names = []string{}
		}
		writeAdminJSON(w, http.StatusOK, GroupsListResponse{Groups: names})
	case "get":
		group, err := h.Manager.GroupInfo(req.Name)
		if err != nil {
			writeAdminError(w, http.StatusNotFound, err.Error())
			return
		}
		writeAdminJSON(w, http.StatusOK, groupResponse(group))
	default:
		writeAdminError(w, http.StatusBadRequest, "unknown groups action")
	}
}

func (h *Handler) handleBundles(w http.ResponseWriter, r *http.Request) {
	var req BundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Name == "" {
		writeAdminError(w, http.StatusBadRequest, "bundle name required")
		return
	}
	bundle, err := h.Manager.BundleInfo(req.Name)
	if err != nil {
		writeAdminError(w, http.StatusNotFound, err.Error())
		return
	}
	writeAdminJSON(w, http.StatusOK, planBundle(bundle))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := ops.Verify(r.Context(), h.Layout, h.Store)
	if err != nil {
		writeAdminError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeAdminJSON(w, http.StatusOK, report)
}
