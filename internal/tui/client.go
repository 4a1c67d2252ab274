package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ethicsengine/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the run controller API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Health reports whether the API server answers.
func (c *Client) Health() bool {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListRuns fetches all run manifests.
func (c *Client) ListRuns() ([]models.RunManifest, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/runs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var runs []models.RunManifest
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun fetches one run manifest.
func (c *Client) GetRun(runID string) (*models.RunManifest, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/runs/" + runID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var m models.RunManifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ConfigRow is one line of the per-configuration summary view.
type ConfigRow struct {
	ConfigID    string  `json:"config_id"`
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Correct     int     `json:"correct"`
	SuccessRate float64 `json:"success_rate"`
}

// GetSummary fetches the per-configuration summary of a run.
func (c *Client) GetSummary(runID string) ([]ConfigRow, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/runs/" + runID + "/summary")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var summary struct {
		Configs []ConfigRow `json:"configs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, err
	}
	return summary.Configs, nil
}

// CreateRun starts a new run over all known configurations for the given
// item kind ("scenarios" or "benchmarks"). Returns the new run ID.
func (c *Client) CreateRun(kind string) (string, error) {
	body, _ := json.Marshal(map[string]string{"kind": kind})
	resp, err := c.httpClient.Post(c.baseURL+"/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error: %s", string(msg))
	}

	var created struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.RunID, nil
}

// CancelRun asks the controller to cancel a run.
func (c *Client) CancelRun(runID string) error {
	resp, err := c.httpClient.Post(c.baseURL+"/runs/"+runID+"/cancel", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s", string(body))
	}
	return nil
}
