package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// Client calls the assistant HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL (e.g. http://localhost:8080).
// No overall timeout is set on the HTTP client: chat responses stream until the model finishes.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// OpenChat posts the conversation and returns the streamed plain-text answer. The caller must
// close the returned body.
func (c *Client) OpenChat(ctx context.Context, messages []models.Message) (io.ReadCloser, error) {
	resp, err := c.post(ctx, "/api/chat", messages)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		return nil, apiError(resp)
	}

	return resp.Body, nil
}

// SubmitURL asks the API to ingest a professor review page and returns the upserted count.
func (c *Client) SubmitURL(ctx context.Context, pageURL string) (int, error) {
	resp, err := c.post(ctx, "/api/submit-url", models.SubmitURLRequest{URL: pageURL})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apiError(resp)
	}

	var out models.SubmitURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode submit-url response: %w", err)
	}

	return out.UpsertedCount, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}

	return resp, nil
}

// apiError turns a non-200 response into an error carrying the API's {"error": ...} message.
func apiError(resp *http.Response) error {
	var body models.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	return fmt.Errorf("api returned status %d: %s", resp.StatusCode, body.Error)
}
