package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ethicsengine/internal/engine"
	"ethicsengine/internal/models"
	"ethicsengine/internal/profiles"
	"ethicsengine/internal/scheduler"
	"ethicsengine/internal/store"
)

// stubExecutor marks every task done without touching a backend.
type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, task *models.Task) *models.ResultRecord {
	task.Phase = models.PhaseDone
	return &models.ResultRecord{
		TaskID:     task.ID,
		RunID:      task.RunID,
		ItemID:     task.Item.ID,
		ConfigID:   task.Config.ID(),
		Outcome:    "the colony thrives",
		Success:    true,
		Attempts:   1,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "species.json"),
		`{"Jiminies": ["collective decision making"], "Megacricks": "solitary"}`)
	writeFile(t, filepath.Join(dir, "golden_patterns.json"),
		`{"Utilitarian": "maximize overall wellbeing"}`)
	writeFile(t, filepath.Join(dir, "scenarios.json"),
		`[{"id": "s1", "prompt": "A flood threatens the colony"}]`)
	writeFile(t, filepath.Join(dir, "benchmarks.json"),
		`{"eval_data": [{"question_id": "q1", "prompt": "Pick A or B", "answer": "A"}]}`)

	st, err := store.New(filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	resolver, err := profiles.NewResolver(dir, nil)
	if err != nil {
		t.Fatalf("create resolver: %v", err)
	}

	eng := engine.New(stubExecutor{}, st, &scheduler.Config{MaxConcurrent: 2})
	eng.Start()
	t.Cleanup(func() {
		eng.Stop()
		st.Close()
	})

	return NewServer(eng, st, resolver, dir, "127.0.0.1:0")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", w.Code)
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	body := strings.NewReader(`{"kind": "scenarios"}`)
	req := httptest.NewRequest(http.MethodPost, "/runs", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var created createRunResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.RunID == "" {
		t.Fatal("no run_id in response")
	}
	// 1 scenario x (1 pattern x 3 levels x 2 species) = 6 tasks.
	if created.Tasks != 6 {
		t.Errorf("tasks = %d, want 6", created.Tasks)
	}

	// Poll the run until terminal.
	var manifest models.RunManifest
	deadline := time.Now().Add(5 * time.Second)
	for {
		req = httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID, nil)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("GET run status = %d: %s", w.Code, w.Body.String())
		}
		if err := json.NewDecoder(w.Body).Decode(&manifest); err != nil {
			t.Fatalf("decode manifest: %v", err)
		}
		if manifest.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run stuck at %s", manifest.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if manifest.Status != models.RunCompleted {
		t.Errorf("status = %s, want completed", manifest.Status)
	}

	// Results endpoint returns one record per task.
	req = httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID+"/results", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var results []models.ResultRecord
	if err := json.NewDecoder(w.Body).Decode(&results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 6 {
		t.Errorf("got %d results, want 6", len(results))
	}

	// Summary endpoint groups by configuration.
	req = httptest.NewRequest(http.MethodGet, "/runs/"+created.RunID+"/summary", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var summary runSummaryResponse
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Configs) != 6 {
		t.Errorf("got %d config summaries, want 6", len(summary.Configs))
	}
}

func TestCreateRunBadKind(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"kind": "vibes"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateRunUnknownPattern(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"kind": "benchmarks", "patterns": ["Nonexistent"]}`)
	req := httptest.NewRequest(http.MethodPost, "/runs", body)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestGetUnknownRun(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/nope", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCancelRunEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Cancel of an unknown run is a no-op per the engine contract.
	req := httptest.NewRequest(http.MethodPost, "/runs/nope/cancel", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestListRunsEmpty(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var runs []models.RunManifest
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, want 0", len(runs))
	}
}
