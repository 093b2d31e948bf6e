package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"watchpost/engine"
	"watchpost/model"
	"watchpost/store"
)

func newTestHandler(t *testing.T) (*Handler, store.Store) {
	t.Helper()
	st, err := store.ConnectSQLite(filepath.Join(t.TempDir(), "handler.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(st.Close)

	runner := &engine.Runner{
		Store:       st,
		Retrier:     engine.NewRetrier(engine.NewExecutor(st), engine.RetryDefaults{}),
		Counter:     &engine.FailureCounter{Store: st},
		Parallelism: 2,
	}
	return New(st, runner), st
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/api/health", h.Health)
	r.Post("/api/checks/run", h.RunChecks)
	r.Get("/api/results", h.ListResults)
	r.Get("/api/alerts", h.ListAlerts)
	r.Route("/api/resources/{id}", func(r chi.Router) {
		r.Use(ValidateID)
		r.Get("/status", h.GetResourceStatus)
	})
	r.Route("/api/heartbeat/{id}", func(r chi.Router) {
		r.Use(ValidateID)
		r.Post("/", h.Heartbeat)
	})
	return r
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Services["store"] != "up" {
		t.Errorf("health = %+v", resp)
	}
}

func TestRunChecksEndpoint(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()

	// A heartbeat check needs no network: a fresh heartbeat probes clean.
	now := time.Now()
	st.InsertResource(ctx, &model.Resource{ID: "r1", Name: "Worker", Type: "vm"})
	st.InsertCheck(ctx, &model.CheckDefinition{
		ID: "hb", ResourceID: "r1", Name: "worker heartbeat",
		Type: model.CheckHeartbeat, Enabled: true,
		ExpectedIntervalSeconds: 300, LastHeartbeatAt: &now,
	})

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("POST", "/api/checks/run", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var sum engine.Summary
	if err := json.NewDecoder(rec.Body).Decode(&sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Total != 1 || sum.Success != 1 {
		t.Errorf("summary = %+v, want 1 total / 1 success", sum)
	}

	// The cycle persisted its result and the resource status
	rec = httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/results?checkId=hb", nil))
	var results []model.CheckResult
	json.NewDecoder(rec.Body).Decode(&results)
	if len(results) != 1 || results[0].Status != model.StatusSuccess {
		t.Errorf("results = %+v", results)
	}

	rec = httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/resources/r1/status", nil))
	var res model.Resource
	json.NewDecoder(rec.Body).Decode(&res)
	if res.Status != model.ResourceUp {
		t.Errorf("resource status = %q, want up", res.Status)
	}
}

func TestRunChecksBadBody(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/checks/run", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHeartbeatEndpoint(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()

	st.InsertCheck(ctx, &model.CheckDefinition{
		ID: "hb", ResourceID: "r1", Type: model.CheckHeartbeat, Enabled: true,
		ExpectedIntervalSeconds: 60,
	})

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("POST", "/api/heartbeat/hb", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	checks, err := st.EnabledChecks(ctx, engine.Filter{CheckID: "hb"})
	if err != nil {
		t.Fatalf("EnabledChecks: %v", err)
	}
	if checks[0].LastHeartbeatAt == nil {
		t.Error("heartbeat not recorded")
	}

	rec = httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("POST", "/api/heartbeat/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown check: status = %d, want 404", rec.Code)
	}
}

func TestGetResourceStatusNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/resources/ghost/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestValidateID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/resources/bad%2Fid/status", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed id", rec.Code)
	}
}

func TestListAlertsEmpty(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/alerts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
