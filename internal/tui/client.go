package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fentz26/stockwatch/internal/controlplane"
	"github.com/fentz26/stockwatch/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the stockwatch API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListTasks fetches the most recent tasks
func (c *Client) ListTasks(limit int) ([]TaskItem, error) {
	path := "/analysis"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var recs []models.TaskRecord
	if err := c.get(path, &recs); err != nil {
		return nil, err
	}

	items := make([]TaskItem, len(recs))
	for i, r := range recs {
		items[i] = TaskItem{Record: r}
	}
	return items, nil
}

// GetTask fetches a single task
func (c *Client) GetTask(id string) (*models.TaskRecord, error) {
	var rec models.TaskRecord
	if err := c.get("/analysis/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Submit queues an analysis and returns the task id
func (c *Client) Submit(symbol string, kind models.ReportKind) (string, error) {
	body := map[string]string{
		"symbol":      symbol,
		"report_type": string(kind),
	}
	resp, err := c.post("/analysis", body)
	if err != nil {
		return "", err
	}

	var result struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.TaskID, nil
}

// Health returns the daemon health payload
func (c *Client) Health() (*controlplane.HealthResponse, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health controlplane.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) get(path string, v interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s", bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", bytes.TrimSpace(body))
	}

	return body, nil
}
