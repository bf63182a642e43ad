package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Camera captures a single frame from the checkpoint.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// SnapshotCamera pulls JPEG frames from an IP camera snapshot endpoint.
// Most ANPR-capable cameras expose one (ISAPI, CGI or similar).
type SnapshotCamera struct {
	url      string
	username string
	password string
	client   *http.Client
}

func NewSnapshotCamera(cfg CameraConfig) *SnapshotCamera {
	return &SnapshotCamera{
		url:      cfg.SnapshotURL,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SnapshotCamera) Capture(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera snapshot status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
