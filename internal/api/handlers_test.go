package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cptracker/internal/config"
	"cptracker/internal/platform"
	syncer "cptracker/internal/sync"
)

type fakeService struct {
	bindErr    error
	bindView   *syncer.HandleView
	unbindErr  error
	listViews  []syncer.HandleView
	listErr    error
	syncAllHit chan int64 // receives 0 for full sync, userID for one-user sync
}

func (f *fakeService) BindHandle(_ context.Context, userID int64, p platform.Platform, handle string) (*syncer.HandleView, error) {
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	if f.bindView != nil {
		return f.bindView, nil
	}
	return &syncer.HandleView{UserID: userID, Platform: p, Handle: handle}, nil
}

func (f *fakeService) UnbindHandle(context.Context, int64, platform.Platform) error {
	return f.unbindErr
}

func (f *fakeService) ListHandles(context.Context, int64) ([]syncer.HandleView, error) {
	return f.listViews, f.listErr
}

func (f *fakeService) SyncAll(context.Context) error {
	if f.syncAllHit != nil {
		f.syncAllHit <- 0
	}
	return nil
}

func (f *fakeService) SyncOne(_ context.Context, userID int64) error {
	if f.syncAllHit != nil {
		f.syncAllHit <- userID
	}
	return nil
}

func newTestServer(svc Service) *Server {
	cfg := config.Config{CORSOrigins: []string{"*"}}
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil, svc, cfg)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", w.Body.String(), err)
	}
	return resp.Error.Code
}

func TestBindHandle_Created(t *testing.T) {
	rating := 1830
	svc := &fakeService{bindView: &syncer.HandleView{
		UserID: 42, Platform: platform.Codeforces, Handle: "alice", Rating: &rating, Rank: "candidate master",
	}}
	s := newTestServer(svc)

	w := doJSON(t, s, http.MethodPost, "/api/v1/users/42/handles",
		`{"platform":"codeforces","handle":"alice"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	var view syncer.HandleView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Rating == nil || *view.Rating != 1830 || view.Rank != "candidate master" {
		t.Errorf("response missing rating data: %+v", view)
	}
}

func TestBindHandle_ValidationAndServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		path       string
		body       string
		bindErr    error
		wantStatus int
		wantCode   string
	}{
		{"missing_fields", "/api/v1/users/1/handles", `{"platform":"codeforces"}`, nil,
			http.StatusBadRequest, "invalid_request"},
		{"bad_platform", "/api/v1/users/1/handles", `{"platform":"leetcode","handle":"x"}`, nil,
			http.StatusBadRequest, "unsupported_platform"},
		{"bad_user_id", "/api/v1/users/zero/handles", `{"platform":"codeforces","handle":"x"}`, nil,
			http.StatusBadRequest, "invalid_user_id"},
		{"negative_user_id", "/api/v1/users/-3/handles", `{"platform":"codeforces","handle":"x"}`, nil,
			http.StatusBadRequest, "invalid_user_id"},
		{"already_bound", "/api/v1/users/1/handles", `{"platform":"codeforces","handle":"x"}`,
			syncer.ErrAlreadyBound, http.StatusConflict, "already_bound"},
		{"handle_not_found", "/api/v1/users/1/handles", `{"platform":"codeforces","handle":"x"}`,
			syncer.ErrHandleNotFound, http.StatusUnprocessableEntity, "handle_not_found"},
		{"no_fetcher", "/api/v1/users/1/handles", `{"platform":"codeforces","handle":"x"}`,
			syncer.ErrUnknownPlatform, http.StatusBadRequest, "unsupported_platform"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeService{bindErr: tc.bindErr})
			w := doJSON(t, s, http.MethodPost, tc.path, tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if code := errorCode(t, w); code != tc.wantCode {
				t.Errorf("error code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestUnbindHandle(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s := newTestServer(&fakeService{})
		w := doJSON(t, s, http.MethodDelete, "/api/v1/users/1/handles/atcoder", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
	t.Run("not_bound", func(t *testing.T) {
		s := newTestServer(&fakeService{unbindErr: syncer.ErrNotBound})
		w := doJSON(t, s, http.MethodDelete, "/api/v1/users/1/handles/atcoder", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
		if code := errorCode(t, w); code != "not_bound" {
			t.Errorf("error code = %q, want not_bound", code)
		}
	})
	t.Run("bad_platform", func(t *testing.T) {
		s := newTestServer(&fakeService{})
		w := doJSON(t, s, http.MethodDelete, "/api/v1/users/1/handles/topcoder", "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestListHandles(t *testing.T) {
	rating := 2100
	svc := &fakeService{listViews: []syncer.HandleView{
		{UserID: 5, Platform: platform.AtCoder, Handle: "snuke", Rating: &rating},
	}}
	s := newTestServer(svc)

	w := doJSON(t, s, http.MethodGet, "/api/v1/users/5/handles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	// without redis the list is served fresh, never from cache
	if w.Header().Get("X-Cache") == "HIT" {
		t.Error("unexpected cache hit without a cache backend")
	}

	var resp struct {
		Handles []syncer.HandleView `json:"handles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Handles) != 1 || resp.Handles[0].Handle != "snuke" {
		t.Errorf("unexpected payload: %+v", resp)
	}
}

func TestSyncEndpointsReturnAccepted(t *testing.T) {
	hits := make(chan int64, 2)
	s := newTestServer(&fakeService{syncAllHit: hits})

	w := doJSON(t, s, http.MethodPost, "/api/v1/sync", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("full sync status = %d, want 202", w.Code)
	}
	if got := <-hits; got != 0 {
		t.Errorf("expected full sync, got user %d", got)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/users/9/sync", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("user sync status = %d, want 202", w.Code)
	}
	if got := <-hits; got != 9 {
		t.Errorf("expected user 9 sync, got %d", got)
	}
}

func TestHealth_ReportsUnconfiguredBackends(t *testing.T) {
	s := newTestServer(&fakeService{})
	w := doJSON(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["database"] != "not_configured" || resp["redis"] != "not_configured" {
		t.Errorf("unexpected health payload: %v", resp)
	}
}

func TestCORS_PreflightAllowedOrigin(t *testing.T) {
	s := newTestServer(&fakeService{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/1/handles", nil)
	req.Header.Set("Origin", "https://tracker.example.com")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://tracker.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
}
