// Package daemonctl provides the HTTP control client the CLI uses to talk
// to a running hopper daemon.
package daemonctl

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

	"hopper/internal/api"
)

// ErrNotFound is returned when the daemon reports no such job.
var ErrNotFound = errors.New("job not found")

// ErrDaemonNotRunning is returned when the daemon API cannot be reached.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given bind address, e.g. "127.0.0.1:8765".
func New(bind string) *Client {
	bind = strings.TrimSpace(bind)
	return &Client{
		baseURL: "http://" + bind,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Running reports whether a daemon answers on the configured address.
func (c *Client) Running(ctx context.Context) bool {
	status, err := c.Status(ctx)
	return err == nil && status.Running
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var status api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Check probes a URL without enqueueing it.
func (c *Client) Check(ctx context.Context, req api.SubmitRequest) (*api.CheckResponse, error) {
	req.Action = api.ActionCheck
	var resp api.CheckResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit enqueues download jobs for a URL.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (*api.SubmitResponse, error) {
	req.Action = api.ActionSubmit
	var resp api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue lists the active jobs in dispatch order.
func (c *Client) Queue(ctx context.Context) ([]api.Job, error) {
	var resp api.QueueListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// History fetches a page of finished jobs.
func (c *Client) History(ctx context.Context, limit, offset int) (*api.HistoryResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/jobs/history"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Job fetches a single job by id.
func (c *Client) Job(ctx context.Context, id string) (*api.Job, error) {
	var resp api.JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// Cancel stops an active job. It returns false when the job had already
// reached a terminal state.
func (c *Client) Cancel(ctx context.Context, id string) (bool, error) {
	var resp api.CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// Delete removes a terminal job record, optionally including its output files.
func (c *Client) Delete(ctx context.Context, id string, removeFiles bool) error {
	path := "/api/jobs/" + url.PathEscape(id)
	if removeFiles {
		path += "?files=1"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}
