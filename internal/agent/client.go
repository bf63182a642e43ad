package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gatelog/internal/gatelog/types"
)

// Client talks to the ledger server's JSON API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ReportDetection submits a plate sighting and returns the server's
// presence decision.
func (c *Client) ReportDetection(ctx context.Context, req types.DetectionRequest) (types.DetectionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.DetectionResponse{}, fmt.Errorf("encode detection: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/detections", bytes.NewReader(body))
	if err != nil {
		return types.DetectionResponse{}, fmt.Errorf("build detection request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return types.DetectionResponse{}, fmt.Errorf("post detection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.DetectionResponse{}, fmt.Errorf("detection status %d: %s", resp.StatusCode, snippet)
	}

	var out types.DetectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.DetectionResponse{}, fmt.Errorf("decode detection response: %w", err)
	}
	return out, nil
}
