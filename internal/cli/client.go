package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// userHeader carries the acting participant on every request
const userHeader = "User"

// Client is an HTTP client for the chat API
type Client struct {
	baseURL    string
	user       string
	httpClient *http.Client
}

// NewClient creates a new API client acting as user
func NewClient(baseURL, user string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		user:    user,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetUser changes the acting participant
func (c *Client) SetUser(user string) {
	c.user = user
}

// User returns the acting participant
func (c *Client) User() string {
	return c.user
}

// APIError represents an error response from the API
type APIError struct {
	Status  int      `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s (%s): %s", e.Message, e.Code, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Do performs an HTTP request
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.user != "" {
		req.Header.Set(userHeader, c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			errResp.Error.Status = resp.StatusCode
			return &errResp.Error
		}
		return &APIError{
			Status:  resp.StatusCode,
			Code:    http.StatusText(resp.StatusCode),
			Message: strings.TrimSpace(string(respBody)),
		}
	}

	// Parse successful response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// Join registers name as a participant
func (c *Client) Join(ctx context.Context, name string) (*Participant, error) {
	var p Participant
	if err := c.Do(ctx, http.MethodPost, "/participants", map[string]string{"name": name}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Participants lists everyone currently online
func (c *Client) Participants(ctx context.Context) ([]Participant, error) {
	var ps []Participant
	if err := c.Do(ctx, http.MethodGet, "/participants", nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// Heartbeat marks the acting participant as still online
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/status", nil, nil)
}

// Send posts a message from the acting participant
func (c *Client) Send(ctx context.Context, to, text, kind string) (*Message, error) {
	body := map[string]string{"to": to, "text": text, "type": kind}
	var m Message
	if err := c.Do(ctx, http.MethodPost, "/messages", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Messages returns the messages visible to the acting participant.
// limit <= 0 requests the full history.
func (c *Client) Messages(ctx context.Context, limit int) ([]Message, error) {
	path := "/messages"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var ms []Message
	if err := c.Do(ctx, http.MethodGet, path, nil, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// Health checks the server and its store
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	var h HealthResult
	if err := c.Do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
