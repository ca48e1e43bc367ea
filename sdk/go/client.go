package reportlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Reportline HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, actorID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		ActorID:  actorID,
		Timeout:  10 * time.Second,
	}
}

// Report represents the canonical report view (partial).
type Report struct {
	ID                     int64               `json:"id"`
	ActivityRecipientType  string              `json:"activityRecipientType"`
	SubmissionStatus       string              `json:"submissionStatus"`
	CalculatedStatus       string              `json:"calculatedStatus"`
	ApprovedAt             *string             `json:"approvedAt"`
	Collaborators          []int64             `json:"collaborators"`
	ActivityRecipients     []ActivityRecipient `json:"activityRecipients"`
	GoalsAndObjectives     []Goal              `json:"goalsAndObjectives"`
	ObjectivesWithoutGoals []Objective         `json:"objectivesWithoutGoals"`
	Approvers              []Approver          `json:"approvers"`
}

type ActivityRecipient struct {
	ID                  int64  `json:"id"`
	ActivityRecipientID int64  `json:"activityRecipientId"`
	Name                string `json:"name"`
	Type                string `json:"type"`
}

type Goal struct {
	ID         int64       `json:"id"`
	GrantID    int64       `json:"grantId"`
	Name       string      `json:"name"`
	Status     string      `json:"status"`
	Objectives []Objective `json:"objectives"`
}

type Objective struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	TTAProvided string   `json:"ttaProvided"`
	Topics      []string `json:"topics"`
}

// Approver is one reviewer row; Status is nil until the approver decides.
type Approver struct {
	ID       int64   `json:"id"`
	ReportID int64   `json:"reportId"`
	UserID   int64   `json:"userId"`
	Status   *string `json:"status"`
	Note     *string `json:"note"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ReportID   int64          `json:"report_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Health returns nil when the API answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

// CreateReport creates a report from a desired-state document. payload is
// any value that marshals to the report payload JSON.
func (c *Client) CreateReport(ctx context.Context, payload any) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPost, "reports", payload, &resp)
	return resp, err
}

// SaveReport reconciles an existing report.
func (c *Client) SaveReport(ctx context.Context, id int64, payload any) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("reports/%d", id), payload, &resp)
	return resp, err
}

// GetReport fetches the canonical view.
func (c *Client) GetReport(ctx context.Context, id int64) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("reports/%d", id), nil, &resp)
	return resp, err
}

// DeleteReport soft deletes a report.
func (c *Client) DeleteReport(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("reports/%d", id), nil, nil)
}

// SetSubmission moves a report to "submitted" or back to "draft".
func (c *Client) SetSubmission(ctx context.Context, id int64, status string) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("reports/%d/submission", id), map[string]string{"status": status}, &resp)
	return resp, err
}

// SetApproverDecision records an approver's review.
func (c *Client) SetApproverDecision(ctx context.Context, reportID, userID int64, status string, note *string) (Approver, error) {
	body := map[string]any{"status": status}
	if note != nil {
		body["note"] = *note
	}
	var resp Approver
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("reports/%d/approvers/%d", reportID, userID), body, &resp)
	return resp, err
}

// ListEvents returns a page of a report's events, newest first.
func (c *Client) ListEvents(ctx context.Context, reportID int64, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := fmt.Sprintf("reports/%d/events", reportID)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code, apiErr.Message = envelope.Error.Code, envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	basePath := strings.Trim(c.BasePath, "/")
	base := strings.TrimRight(c.BaseURL, "/")
	if basePath == "" {
		return base
	}
	return base + "/" + basePath
}
