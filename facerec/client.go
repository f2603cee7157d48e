// Package facerec is the client for the face-recognition scene-detection
// service. The service scans a stored video for the faces in the supplied
// cast photos and returns the matching scenes.
package facerec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"clipforge/config"
)

// Scene is one continuous span of the video in which a requested face
// appears.
type Scene struct {
	StartSeconds float64 `json:"start_time"`
	EndSeconds   float64 `json:"end_time"`
}

type processRequest struct {
	Video      string   `json:"video"`
	CastPhotos []string `json:"castPhotos"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.FaceRecURL,
		// Scanning a full video frame by frame is slow; give the service
		// plenty of room before giving up on the connection.
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// FindScenes submits the video and cast photo references for analysis and
// returns the detected scenes. An empty result is a valid answer.
func (c *Client) FindScenes(ctx context.Context, videoRef string, castPhotoRefs []string) ([]Scene, error) {
	if c.baseURL == "" {
		return nil, errors.New("face recognition service is not configured")
	}

	body, err := json.Marshal(processRequest{Video: videoRef, CastPhotos: castPhotoRefs})
	if err != nil {
		return nil, fmt.Errorf("marshal scene request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process-video", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("face recognition failed: HTTP %d: %s", resp.StatusCode, respBody)
	}

	var scenes []Scene
	if err := json.Unmarshal(respBody, &scenes); err != nil {
		return nil, fmt.Errorf("decode scene response: %w", err)
	}
	return scenes, nil
}
