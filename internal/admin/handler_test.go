package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kk-code-lab/packsync/internal/fetch"
	"github.com/kk-code-lab/packsync/internal/manifest"
	"github.com/kk-code-lab/packsync/internal/progress"
	"github.com/kk-code-lab/packsync/internal/storage/fs"
	"github.com/kk-code-lab/packsync/internal/store"
	"github.com/kk-code-lab/packsync/internal/syncer"
)

const testToken = "test-token"

type stubFetcher struct {
	manifest *manifest.Manifest
	err      error
}

func (f *stubFetcher) Fetch(ctx context.Context, sink progress.Sink) (*manifest.Manifest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.manifest, nil
}

func testHandler(t *testing.T, fetcher *stubFetcher) (*Handler, *syncer.Manager) {
	t.Helper()
	layout := fs.NewLayout(t.TempDir())
	fileStore, err := store.NewFileStore(layout.ManifestPath, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	opts := syncer.Options{Store: fileStore}
	if fetcher != nil {
		opts.Fetcher = fetcher
	}
	mgr, err := syncer.New(opts)
	if err != nil {
		t.Fatalf("syncer.New: %v", err)
	}
	return &Handler{Layout: layout, Manager: mgr, Store: fileStore, AuthToken: testToken}, mgr
}

func adminPost(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(TokenHeader(), testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seedManifest() *manifest.Manifest {
	return &manifest.Manifest{
		LastUpdate: 100,
		Groups: []manifest.ContentGroup{
			{Name: "level-1", Bundles: []manifest.Bundle{
				{Name: "terrain", FetchURL: "http://cdn/terrain", Size: 64, Hash: []byte{1, 2}, PartCount: 1},
			}},
		},
	}
}

func TestHandlerRequiresToken(t *testing.T) {
	h, _ := testHandler(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing token: status %d", rec.Code)
	}

	h.AuthToken = ""
	req = httptest.NewRequest(http.MethodPost, "/admin/status", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("empty configured token must reject: status %d", rec.Code)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h, _ := testHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	req.Header.Set(TokenHeader(), testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status %d", rec.Code)
	}
}

func TestHandlerUnknownEndpoint(t *testing.T) {
	h, _ := testHandler(t, nil)
	if rec := adminPost(t, h, "/admin/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown endpoint: status %d", rec.Code)
	}
}

func TestHandlerStatus(t *testing.T) {
	h, mgr := testHandler(t, nil)
	if err := mgr.CommitManifest(context.Background(), seedManifest()); err != nil {
		t.Fatalf("CommitManifest: %v", err)
	}
	rec := adminPost(t, h, "/admin/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.LastUpdateMS != 100 || resp.Groups != 1 || resp.Bundles != 1 || !resp.StoredRecord {
		t.Fatalf("status mismatch: %+v", resp)
	}
}

func TestHandlerSyncCheck(t *testing.T) {
	candidate := seedManifest()
	candidate.LastUpdate = 200
	candidate.Groups = append(candidate.Groups, manifest.ContentGroup{
		Name:    "level-2",
		Bundles: []manifest.Bundle{{Name: "boss", FetchURL: "http://cdn/boss", Size: 32, Hash: []byte{3}, PartCount: 1}},
	})
	h, mgr := testHandler(t, &stubFetcher{manifest: candidate})
	if err := mgr.CommitManifest(context.Background(), seedManifest()); err != nil {
		t.Fatalf("CommitManifest: %v", err)
	}

	rec := adminPost(t, h, "/admin/sync/check", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("check: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp CheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.UpToDate || len(resp.NewGroups) != 1 || resp.NewGroups[0] != "level-2" {
		t.Fatalf("check mismatch: %+v", resp)
	}
	if len(resp.BundlesToFetch) != 1 || resp.BundlesToFetch[0].Name != "boss" || resp.FetchBytes != 32 {
		t.Fatalf("plan mismatch: %+v", resp)
	}
}

func TestHandlerSyncCheckTransportFailure(t *testing.T) {
	h, _ := testHandler(t, &stubFetcher{err: fetch.ErrTransport})
	rec := adminPost(t, h, "/admin/sync/check", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("transport failure must be 502, got %d", rec.Code)
	}
}

func TestHandlerSyncCommit(t *testing.T) {
	h, mgr := testHandler(t, nil)
	var body bytes.Buffer
	if err := manifest.EncodeJSON(&body, seedManifest()); err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	rec := adminPost(t, h, "/admin/sync/commit", body.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: %d body=%s", rec.Code, rec.Body.String())
	}
	if mgr.Held().LastUpdate != 100 {
		t.Fatalf("commit did not apply: %+v", mgr.Held())
	}
}

func TestHandlerSyncCommitRejectsStale(t *testing.T) {
	h, mgr := testHandler(t, nil)
	if err := mgr.CommitManifest(context.Background(), seedManifest()); err != nil {
		t.Fatalf("CommitManifest: %v", err)
	}

	stale := seedManifest()
	stale.LastUpdate = 50
	stale.Groups[0].Bundles[0].Hash = []byte{9}
	var body bytes.Buffer
	if err := manifest.EncodeJSON(&body, stale); err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	rec := adminPost(t, h, "/admin/sync/commit", body.String())
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale commit must be 409, got %d body=%s", rec.Code, rec.Body.String())
	}
	if mgr.Held().LastUpdate != 100 {
		t.Fatalf("held manifest rolled back: %+v", mgr.Held())
	}
	stored, err := h.Store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.LastUpdate != 100 {
		t.Fatalf("persisted manifest rolled back: %+v", stored)
	}
}

func TestHandlerSyncCommitRejectsInvalid(t *testing.T) {
	h, _ := testHandler(t, nil)
	if rec := adminPost(t, h, "/admin/sync/commit", `{"last_update_ms":1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing content_groups must be 400, got %d", rec.Code)
	}
}

func TestHandlerGroups(t *testing.T) {
	h, mgr := testHandler(t, nil)
	if err := mgr.CommitManifest(context.Background(), seedManifest()); err != nil {
		t.Fatalf("CommitManifest: %v", err)
	}

	rec := adminPost(t, h, "/admin/groups", `{"action":"list"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list GroupsListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Groups) != 1 || list.Groups[0] != "level-1" {
		t.Fatalf("list mismatch: %+v", list)
	}

	rec = adminPost(t, h, "/admin/groups", `{"action":"get","name":"level-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	rec = adminPost(t, h, "/admin/groups", `{"action":"get","name":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing group must be 404, got %d", rec.Code)
	}
}

func TestHandlerBundles(t *testing.T) {
	h, mgr := testHandler(t, nil)
	if err := mgr.CommitManifest(context.Background(), seedManifest()); err != nil {
		t.Fatalf("CommitManifest: %v", err)
	}
	rec := adminPost(t, h, "/admin/bundles", `{"name":"terrain"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bundle get: %d", rec.Code)
	}
	var resp PlanBundle
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Name != "terrain" || resp.Hash != "0102" {
		t.Fatalf("bundle mismatch: %+v", resp)
	}

	if rec := adminPost(t, h, "/admin/bundles", `{"name":"missing"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("missing bundle must be 404, got %d", rec.Code)
	}
	if rec := adminPost(t, h, "/admin/bundles", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty name must be 400, got %d", rec.Code)
	}
}

func TestHandlerVerify(t *testing.T) {
	h, mgr := testHandler(t, nil)
	if err := mgr.CommitManifest(context.Background(), seedManifest()); err != nil {
		t.Fatalf("CommitManifest: %v", err)
	}
	rec := adminPost(t, h, "/admin/verify", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"mode":"verify"`) {
		t.Fatalf("verify report missing: %s", rec.Body.String())
	}
}
