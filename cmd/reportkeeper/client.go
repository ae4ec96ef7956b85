package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/server"
	"mercator-hq/reportkeeper/pkg/telemetry/tracing"
)

// DefaultServerURL is used when neither --server nor REPORTKEEPER_SERVER is
// set.
const DefaultServerURL = "http://127.0.0.1:8080"

var clientFlags struct {
	server  string
	apiKey  string
	timeout time.Duration
	output  string
}

// apiClient calls the Report Keeper HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string, timeout time.Duration) (*apiClient, error) {
	if baseURL == "" {
		baseURL = os.Getenv("REPORTKEEPER_SERVER")
	}
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	apiKey = apiKeyOrEnv(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("an API key is required (--api-key or REPORTKEEPER_API_KEY)")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func apiKeyOrEnv(key string) string {
	if key == "" {
		return os.Getenv("REPORTKEEPER_API_KEY")
	}
	return key
}

// apiError is a non-2xx API response. It unwraps to the matching report
// error so exit codes follow the server's answer.
type apiError struct {
	Status  int
	Type    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *apiError) Unwrap() error {
	switch e.Type {
	case "not_found":
		return report.ErrNotFound
	case "forbidden":
		return report.ErrForbidden
	case "invalid_transition":
		return report.ErrInvalidTransition
	case "recovery_window_expired":
		return report.ErrRecoveryWindowExpired
	case "not_deleted":
		return report.ErrNotDeleted
	case "already_exists":
		return report.ErrAlreadyExists
	case "conflict":
		return report.ErrConditionFailed
	case "run_in_progress":
		return report.ErrRunInProgress
	default:
		return nil
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
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
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	tracing.Inject(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body server.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return &apiError{Status: resp.StatusCode, Type: body.Error.Type, Message: body.Error.Message}
	}

	// Authentication failures are plain text.
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &apiError{Status: resp.StatusCode, Message: msg}
}
