// Package client talks to the pandemus-api simulation endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pandemus/internal/model"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Fields  []model.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			msgs = append(msgs, fmt.Sprintf("%s: %s", f.Path, f.Msg))
		}
		return fmt.Sprintf("pandemus-api returned status %d: %s", e.Status, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("pandemus-api returned status %d: %s", e.Status, e.Message)
}

// Client handles simulation requests against pandemus-api
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a new API client. baseURL includes the /api prefix.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Create stores a new simulation record.
func (c *Client) Create(ctx context.Context, req *model.CreateSimulationRequest) (*model.Simulation, error) {
	var response struct {
		Created *model.Simulation `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/simulation/create", req, &response); err != nil {
		return nil, err
	}
	c.logger.Debug("Simulation saved", "simulation_id", response.Created.ID)
	return response.Created, nil
}

// List returns every stored simulation.
func (c *Client) List(ctx context.Context) ([]*model.Simulation, error) {
	var response struct {
		Simulations []*model.Simulation `json:"simulations"`
	}
	if err := c.do(ctx, http.MethodGet, "/simulation/list", nil, &response); err != nil {
		return nil, err
	}
	return response.Simulations, nil
}

// Get fetches one simulation.
func (c *Client) Get(ctx context.Context, id int64) (*model.Simulation, error) {
	var response struct {
		Simulation *model.Simulation `json:"simulation"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/simulation/%d", id), nil, &response); err != nil {
		return nil, err
	}
	return response.Simulation, nil
}

// Delete removes one simulation and returns it.
func (c *Client) Delete(ctx context.Context, id int64) (*model.Simulation, error) {
	var response struct {
		Deleted *model.Simulation `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/simulation/%d/delete", id), nil, &response); err != nil {
		return nil, err
	}
	return response.Deleted, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach pandemus-api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError reads the error body. The API answers with either
// {"error": "..."}, {"error": [fields]} or {"errors": [fields]}.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var payload struct {
		Error  json.RawMessage    `json:"error"`
		Errors []model.FieldError `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return apiErr
	}
	apiErr.Fields = payload.Errors
	if len(payload.Error) > 0 {
		var msg string
		if err := json.Unmarshal(payload.Error, &msg); err == nil {
			apiErr.Message = msg
		} else {
			var fields []model.FieldError
			if err := json.Unmarshal(payload.Error, &fields); err == nil {
				apiErr.Fields = fields
			}
		}
	}
	return apiErr
}
