// Package api provides the HTTP surface over the run controller, used by
// the dashboard and by scripted callers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"ethicsengine/internal/data"
	"ethicsengine/internal/engine"
	"ethicsengine/internal/models"
	"ethicsengine/internal/profiles"
	"ethicsengine/internal/store"
)

// Server provides the HTTP API over a running engine.
type Server struct {
	engine   *engine.Engine
	store    *store.Store
	resolver *profiles.Resolver
	dataDir  string
	addr     string
	server   *http.Server
}

// NewServer creates a new HTTP server. dataDir is where scenario and
// benchmark files are read from when a run is started over the API.
func NewServer(eng *engine.Engine, st *store.Store, resolver *profiles.Resolver, dataDir, addr string) *Server {
	return &Server{
		engine:   eng,
		store:    st,
		resolver: resolver,
		dataDir:  dataDir,
		addr:     addr,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting API server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunByID)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}

// handleRuns handles POST /runs and GET /runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRun(w, r)
	case http.MethodGet:
		s.listRuns(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunByID handles /runs/{id}/*
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/runs/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}

	runID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getRun(w, r, runID)
	case action == "results" && r.Method == http.MethodGet:
		s.getRunResults(w, r, runID)
	case action == "summary" && r.Method == http.MethodGet:
		s.getRunSummary(w, r, runID)
	case action == "cancel" && r.Method == http.MethodPost:
		s.cancelRun(w, r, runID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// --- Run Handlers ---

type createRunRequest struct {
	Kind     string   `json:"kind"` // scenarios | benchmarks
	File     string   `json:"file,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Levels   []string `json:"levels,omitempty"`
	Species  []string `json:"species,omitempty"`
}

type createRunResponse struct {
	RunID string `json:"run_id"`
	Tasks int    `json:"tasks"`
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	items, err := s.loadItems(req.Kind, req.File)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Empty filters mean everything the resolver knows.
	if len(req.Patterns) == 0 {
		req.Patterns = s.resolver.Patterns()
	}
	if len(req.Levels) == 0 {
		req.Levels = s.resolver.Levels()
	}
	if len(req.Species) == 0 {
		req.Species = s.resolver.Species()
	}

	configs, err := s.resolver.ResolveAll(req.Patterns, req.Levels, req.Species)
	if err != nil {
		var cerr *profiles.ConfigError
		if errors.As(err, &cerr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	runID, err := s.engine.StartRun(items, configs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrNoWork) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createRunResponse{RunID: runID, Tasks: len(items) * len(configs)})
}

func (s *Server) loadItems(kind, file string) ([]models.WorkItem, error) {
	switch kind {
	case "scenarios":
		if file == "" {
			file = "scenarios.json"
		}
		return data.LoadScenarios(filepath.Join(s.dataDir, file))
	case "benchmarks":
		if file == "" {
			file = "benchmarks.json"
		}
		return data.LoadBenchmarks(filepath.Join(s.dataDir, file))
	default:
		return nil, errors.New(`kind must be "scenarios" or "benchmarks"`)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.engine.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.RunManifest{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request, runID string) {
	m, err := s.engine.Status(runID)
	if errors.Is(err, engine.ErrUnknownRun) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

func (s *Server) getRunResults(w http.ResponseWriter, r *http.Request, runID string) {
	results, err := s.store.ResultsForRun(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []models.ResultRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

type runSummaryResponse struct {
	Configs []store.ConfigSummary `json:"configs"`
	Items   []store.ItemOutcome   `json:"items"`
}

func (s *Server) getRunSummary(w http.ResponseWriter, r *http.Request, runID string) {
	configs, err := s.store.SummarizeByConfig(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	items, err := s.store.SummarizeByItem(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runSummaryResponse{Configs: configs, Items: items})
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request, runID string) {
	if err := s.engine.Cancel(runID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"cancelling"}`))
}
