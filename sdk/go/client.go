// Package chorelinesdk is a minimal HTTP client for the choreline API.
package chorelinesdk

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

	"choreline/internal/domain"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type updatedResponse struct {
	Updated bool `json:"updated"`
}

// ListFilter narrows status entity listings. Since is in days; zero
// takes the server default window.
type ListFilter struct {
	PersonID int64
	Status   string
	Name     string
	Since    int
}

func (f ListFilter) query() string {
	q := url.Values{}
	if f.PersonID != 0 {
		q.Set("person_id", fmt.Sprint(f.PersonID))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	if f.Since != 0 {
		q.Set("since", fmt.Sprint(f.Since))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// OpenRoutines lists routines still open within the server's default
// lookback window.
func (c *Client) OpenRoutines(ctx context.Context) ([]domain.State, error) {
	return c.ListStates(ctx, domain.KindRoutine, ListFilter{Status: string(domain.StatusOpened)})
}

// ListStates lists todos or routines.
func (c *Client) ListStates(ctx context.Context, kind domain.Kind, f ListFilter) ([]domain.State, error) {
	var resp struct {
		Items []domain.State `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, string(kind)+f.query(), nil, &resp)
	return resp.Items, err
}

// ListValues lists areas or acts.
func (c *Client) ListValues(ctx context.Context, kind domain.Kind, f ListFilter) ([]domain.Value, error) {
	var resp struct {
		Items []domain.Value `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, string(kind)+f.query(), nil, &resp)
	return resp.Items, err
}

// Create creates a status entity from an open payload, the same body
// the API accepts.
func (c *Client) Create(ctx context.Context, kind domain.Kind, body map[string]any, out any) error {
	return c.do(ctx, http.MethodPost, string(kind), body, out)
}

// GetState fetches a todo or routine by id.
func (c *Client) GetState(ctx context.Context, kind domain.Kind, id int64) (domain.State, error) {
	var resp domain.State
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", kind, id), nil, &resp)
	return resp, err
}

// GetValue fetches an area or act by id.
func (c *Client) GetValue(ctx context.Context, kind domain.Kind, id int64) (domain.Value, error) {
	var resp domain.Value
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", kind, id), nil, &resp)
	return resp, err
}

// Action fires a transition on any status entity.
func (c *Client) Action(ctx context.Context, kind domain.Kind, id int64, action string) (bool, error) {
	var resp updatedResponse
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("%s/%d/%s", kind, id, url.PathEscape(action)), nil, &resp)
	return resp.Updated, err
}

// RoutineAction fires a transition on a routine.
func (c *Client) RoutineAction(ctx context.Context, id int64, action string) (bool, error) {
	return c.Action(ctx, domain.KindRoutine, id, action)
}

// TaskAction fires a transition on one task of a routine.
func (c *Client) TaskAction(ctx context.Context, routineID int64, taskID int, action string) (bool, error) {
	var resp updatedResponse
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("routine/%d/task/%d/%s", routineID, taskID, url.PathEscape(action)), nil, &resp)
	return resp.Updated, err
}

// RemindTodos nudges every open todo of a person at once.
func (c *Client) RemindTodos(ctx context.Context, todos map[string]any) (bool, error) {
	var resp updatedResponse
	err := c.do(ctx, http.MethodPatch, "todo", map[string]any{"todos": todos}, &resp)
	return resp.Updated, err
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
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
