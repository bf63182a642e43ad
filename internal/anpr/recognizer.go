package anpr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"gatelog/internal/gatelog/types"
)

// DefaultEndpoint is the hosted PlateRecognizer reader; self-hosted SDKs
// expose the same API on a local port.
const DefaultEndpoint = "https://api.platerecognizer.com/v1/plate-reader/"

// ErrNoPlate means the recognizer saw the image fine but found no plate in
// it. The caller must not change any ledger state on this result.
var ErrNoPlate = errors.New("no plate recognized")

// Recognition is one recognized plate.
type Recognition struct {
	Plate       string  // normalized upper-case
	Confidence  float64 // 0..1
	Region      string  // e.g. "in", "us-ca"; empty when unknown
	VehicleType string  // e.g. "Car"; empty when unknown
}

// Detector yields a plate from a captured image.
type Detector interface {
	Detect(ctx context.Context, image []byte, filename string) (Recognition, error)
}

// PlateRecognizer calls a PlateRecognizer-compatible HTTP API.
type PlateRecognizer struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewPlateRecognizer(endpoint, token string) *PlateRecognizer {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &PlateRecognizer{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type readerResponse struct {
	Results []struct {
		Plate  string  `json:"plate"`
		Score  float64 `json:"score"`
		Region struct {
			Code string `json:"code"`
		} `json:"region"`
		Vehicle struct {
			Type string `json:"type"`
		} `json:"vehicle"`
	} `json:"results"`
}

func (p *PlateRecognizer) Detect(ctx context.Context, image []byte, filename string) (Recognition, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("upload", filename)
	if err != nil {
		return Recognition{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return Recognition{}, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Recognition{}, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return Recognition{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.token != "" {
		req.Header.Set("Authorization", "Token "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Recognition{}, fmt.Errorf("plate reader request: %w", err)
	}
	defer resp.Body.Close()

	// The hosted API answers 200 or 201 depending on plan.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Recognition{}, fmt.Errorf("plate reader status %d: %s", resp.StatusCode, snippet)
	}

	var rr readerResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return Recognition{}, fmt.Errorf("decode plate reader response: %w", err)
	}
	if len(rr.Results) == 0 {
		return Recognition{}, ErrNoPlate
	}

	best := rr.Results[0]
	return Recognition{
		Plate:       types.NormalizePlate(best.Plate),
		Confidence:  best.Score,
		Region:      best.Region.Code,
		VehicleType: best.Vehicle.Type,
	}, nil
}
