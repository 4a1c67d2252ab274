// Package store provides SQLite-backed persistence for run manifests and
// result records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ethicsengine/internal/models"
	_ "modernc.org/sqlite"
)

// Store provides access to the results database. Result writes are
// incremental (one upsert per record) so completed work survives a crash
// mid-run.
type Store struct {
	db *sql.DB
}

// New creates a Store at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for better concurrency between writers and status readers.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		items INTEGER NOT NULL,
		configs INTEGER NOT NULL,
		total INTEGER NOT NULL,
		pending INTEGER NOT NULL,
		running INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		config_id TEXT NOT NULL,
		outcome TEXT,
		success INTEGER NOT NULL,
		error_kind TEXT,
		reasoning TEXT,
		attempts INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, task_id)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_config ON results(run_id, config_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- Run Manifest Operations ---

// SaveManifest inserts or replaces a run manifest.
func (s *Store) SaveManifest(m *models.RunManifest) error {
	var finished interface{}
	if !m.FinishedAt.IsZero() {
		finished = m.FinishedAt
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, status, items, configs, total, pending, running, succeeded, failed, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			pending = excluded.pending,
			running = excluded.running,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			finished_at = excluded.finished_at`,
		m.RunID, m.Status, m.Items, m.Configs,
		m.Counts.Total, m.Counts.Pending, m.Counts.Running, m.Counts.Succeeded, m.Counts.Failed,
		m.CreatedAt, finished,
	)
	if err != nil {
		return fmt.Errorf("upsert manifest: %w", err)
	}
	return nil
}

// GetManifest retrieves a run manifest by ID, or nil when absent.
func (s *Store) GetManifest(runID string) (*models.RunManifest, error) {
	m := &models.RunManifest{}
	var finished sql.NullTime
	err := s.db.QueryRow(
		`SELECT run_id, status, items, configs, total, pending, running, succeeded, failed, created_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&m.RunID, &m.Status, &m.Items, &m.Configs,
		&m.Counts.Total, &m.Counts.Pending, &m.Counts.Running, &m.Counts.Succeeded, &m.Counts.Failed,
		&m.CreatedAt, &finished)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}
	if finished.Valid {
		m.FinishedAt = finished.Time
	}
	return m, nil
}

// ListManifests returns all run manifests, newest first.
func (s *Store) ListManifests() ([]models.RunManifest, error) {
	rows, err := s.db.Query(
		`SELECT run_id, status, items, configs, total, pending, running, succeeded, failed, created_at, finished_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query manifests: %w", err)
	}
	defer rows.Close()

	var manifests []models.RunManifest
	for rows.Next() {
		var m models.RunManifest
		var finished sql.NullTime
		if err := rows.Scan(&m.RunID, &m.Status, &m.Items, &m.Configs,
			&m.Counts.Total, &m.Counts.Pending, &m.Counts.Running, &m.Counts.Succeeded, &m.Counts.Failed,
			&m.CreatedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		if finished.Valid {
			m.FinishedAt = finished.Time
		}
		manifests = append(manifests, m)
	}
	return manifests, rows.Err()
}

// --- Result Operations ---

// UpsertResult persists one result record. A duplicate record for the same
// (run_id, task_id) replaces the previous row, so retries are idempotent.
func (s *Store) UpsertResult(rec *models.ResultRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO results (run_id, task_id, item_id, config_id, outcome, success, error_kind, reasoning, attempts, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, task_id) DO UPDATE SET
			outcome = excluded.outcome,
			success = excluded.success,
			error_kind = excluded.error_kind,
			reasoning = excluded.reasoning,
			attempts = excluded.attempts,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		rec.RunID, rec.TaskID, rec.ItemID, rec.ConfigID, rec.Outcome,
		boolToInt(rec.Success), string(rec.ErrorKind), rec.Reasoning, rec.Attempts,
		rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// ResultsForRun returns all result records for a run in insertion order.
func (s *Store) ResultsForRun(runID string) ([]models.ResultRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, task_id, item_id, config_id, outcome, success, error_kind, reasoning, attempts, started_at, finished_at
		 FROM results WHERE run_id = ? ORDER BY finished_at, task_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var records []models.ResultRecord
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanResult(rows *sql.Rows) (*models.ResultRecord, error) {
	rec := &models.ResultRecord{}
	var success int
	var outcome, errorKind, reasoning sql.NullString
	if err := rows.Scan(&rec.RunID, &rec.TaskID, &rec.ItemID, &rec.ConfigID, &outcome,
		&success, &errorKind, &reasoning, &rec.Attempts, &rec.StartedAt, &rec.FinishedAt); err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	rec.Success = success != 0
	rec.Outcome = outcome.String
	rec.ErrorKind = models.ErrorKind(errorKind.String)
	rec.Reasoning = reasoning.String
	return rec, nil
}

// --- Summarization Views ---

// ConfigSummary aggregates results per agent configuration.
type ConfigSummary struct {
	ConfigID    string  `json:"config_id"`
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Correct     int     `json:"correct"` // benchmark verdicts only
	SuccessRate float64 `json:"success_rate"`
}

// SummarizeByConfig returns per-configuration success rates for a run.
func (s *Store) SummarizeByConfig(runID string) ([]ConfigSummary, error) {
	rows, err := s.db.Query(
		`SELECT config_id,
			COUNT(*),
			SUM(success),
			SUM(1 - success),
			SUM(CASE WHEN outcome = 'correct' THEN 1 ELSE 0 END)
		 FROM results WHERE run_id = ? GROUP BY config_id ORDER BY config_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarize by config: %w", err)
	}
	defer rows.Close()

	var summaries []ConfigSummary
	for rows.Next() {
		var cs ConfigSummary
		if err := rows.Scan(&cs.ConfigID, &cs.Total, &cs.Succeeded, &cs.Failed, &cs.Correct); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if cs.Total > 0 {
			cs.SuccessRate = float64(cs.Succeeded) / float64(cs.Total)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// ItemOutcome is one cell of the per-item outcome distribution.
type ItemOutcome struct {
	ItemID  string `json:"item_id"`
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// SummarizeByItem returns the outcome distribution per work item. Failed
// tasks are grouped under their error kind.
func (s *Store) SummarizeByItem(runID string) ([]ItemOutcome, error) {
	rows, err := s.db.Query(
		`SELECT item_id,
			CASE WHEN success = 1 THEN outcome ELSE 'error:' || error_kind END,
			COUNT(*)
		 FROM results WHERE run_id = ? GROUP BY 1, 2 ORDER BY 1, 2`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarize by item: %w", err)
	}
	defer rows.Close()

	var dist []ItemOutcome
	for rows.Next() {
		var io ItemOutcome
		if err := rows.Scan(&io.ItemID, &io.Outcome, &io.Count); err != nil {
			return nil, fmt.Errorf("scan item outcome: %w", err)
		}
		dist = append(dist, io)
	}
	return dist, rows.Err()
}

// RunExport is the full-run export layout.
type RunExport struct {
	Manifest *models.RunManifest   `json:"manifest"`
	Results  []models.ResultRecord `json:"results"`
}

// ExportRun writes the manifest and all result records of a run as JSON.
func (s *Store) ExportRun(runID string, w io.Writer) error {
	manifest, err := s.GetManifest(runID)
	if err != nil {
		return err
	}
	if manifest == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	results, err := s.ResultsForRun(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(RunExport{Manifest: manifest, Results: results})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
