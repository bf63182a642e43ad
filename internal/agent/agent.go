package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gatelog/internal/anpr"
	"gatelog/internal/gatelog/types"
)

// A stationary vehicle keeps appearing in consecutive frames. Reporting
// every frame would toggle it in and out of the ledger, so repeats of the
// same plate are suppressed for this long.
const repeatCooldown = 2 * time.Minute

// Agent runs the checkpoint capture loop: grab a frame, read the plate,
// report it to the ledger server.
type Agent struct {
	camera   Camera
	detector anpr.Detector
	client   *Client
	logger   *log.Logger

	photosDir string
	interval  time.Duration

	lastPlate string
	lastSeen  time.Time
}

func New(cfg *Config, camera Camera, detector anpr.Detector, client *Client, logger *log.Logger) *Agent {
	return &Agent{
		camera:    camera,
		detector:  detector,
		client:    client,
		logger:    logger,
		photosDir: cfg.PhotosDir,
		interval:  cfg.Interval(),
	}
}

// RunOnce performs a single capture-recognize-report cycle.
// A frame with no readable plate is not an error and produces no report.
func (a *Agent) RunOnce(ctx context.Context) (*types.DetectionResponse, error) {
	frame, err := a.camera.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	capturedAt := time.Now()
	filename := capturedAt.Format("20060102_150405") + ".jpg"

	rec, err := a.detector.Detect(ctx, frame, filename)
	if errors.Is(err, anpr.ErrNoPlate) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	if rec.Plate == a.lastPlate && capturedAt.Sub(a.lastSeen) < repeatCooldown {
		a.lastSeen = capturedAt
		return nil, nil
	}

	imagePath, err := a.savePhoto(frame, filename)
	if err != nil {
		a.logger.Printf("agent: save photo: %v", err)
		imagePath = ""
	}

	resp, err := a.client.ReportDetection(ctx, types.DetectionRequest{
		VehicleNo:  rec.Plate,
		ImagePath:  imagePath,
		DetectedAt: capturedAt.Format(types.TimeLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	a.lastPlate = rec.Plate
	a.lastSeen = capturedAt
	return &resp, nil
}

// Watch loops RunOnce until the context is cancelled.
func (a *Agent) Watch(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		resp, err := a.RunOnce(ctx)
		if err != nil {
			a.logger.Printf("agent: %v", err)
		} else if resp != nil {
			a.report(resp)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Agent) report(resp *types.DetectionResponse) {
	switch resp.Decision {
	case types.DecisionOpen:
		a.logger.Printf("agent: %s entered (event %s)", resp.VehicleNo, resp.EventID)
		if resp.FormURL != "" {
			a.logger.Printf("agent: visitor form: %s", resp.FormURL)
		}
	case types.DecisionClose:
		a.logger.Printf("agent: %s exited (event %s)", resp.VehicleNo, resp.EventID)
	default:
		a.logger.Printf("agent: %s decision %q (event %s)", resp.VehicleNo, resp.Decision, resp.EventID)
	}
}

func (a *Agent) savePhoto(frame []byte, filename string) (string, error) {
	if a.photosDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(a.photosDir, 0755); err != nil {
		return "", fmt.Errorf("create photos dir: %w", err)
	}
	path := filepath.Join(a.photosDir, filename)
	if err := os.WriteFile(path, frame, 0644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return path, nil
}
