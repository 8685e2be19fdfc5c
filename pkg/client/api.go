package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/habitflow/habitflow-go/pkg/store"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

// APIError is a non-2xx REST response.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// API is a REST client for a habitflow server.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI creates a REST client. A nil httpClient means http.DefaultClient.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

type timerList struct {
	Timers []store.Definition `json:"timers"`
}

type activeList struct {
	Timers []timer.Info `json:"timers"`
}

// ListTimers returns every timer definition.
func (a *API) ListTimers(ctx context.Context) ([]store.Definition, error) {
	var out timerList
	if err := a.do(ctx, http.MethodGet, "/api/v1/timers", nil, &out); err != nil {
		return nil, err
	}
	return out.Timers, nil
}

// GetTimer returns one timer definition.
func (a *API) GetTimer(ctx context.Context, id string) (store.Definition, error) {
	var out store.Definition
	err := a.do(ctx, http.MethodGet, "/api/v1/timers/"+url.PathEscape(id), nil, &out)
	return out, err
}

// CreateTimer creates a timer definition.
func (a *API) CreateTimer(ctx context.Context, name string, seconds int) (store.Definition, error) {
	var out store.Definition
	err := a.do(ctx, http.MethodPost, "/api/v1/timers", store.DefinitionInput{Name: name, Duration: seconds}, &out)
	return out, err
}

// DeleteTimer removes a timer definition.
func (a *API) DeleteTimer(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/v1/timers/"+url.PathEscape(id), nil, nil)
}

// ListActive returns the live timers held by the server.
func (a *API) ListActive(ctx context.Context) ([]timer.Info, error) {
	var out activeList
	if err := a.do(ctx, http.MethodGet, "/api/v1/timers/active", nil, &out); err != nil {
		return nil, err
	}
	return out.Timers, nil
}

// Command applies a command over REST and returns the resulting snapshot.
func (a *API) Command(ctx context.Context, id string, req timer.Request) (timer.Snapshot, error) {
	var out timer.Snapshot
	err := a.do(ctx, http.MethodPost, "/api/v1/timers/"+url.PathEscape(id)+"/commands", req, &out)
	return out, err
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
