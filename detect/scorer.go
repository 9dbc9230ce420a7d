package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// ErrScoring marks a failed inference call for a single frame. The frame
// is skipped; the task only fails when such errors recur.
var ErrScoring = errors.New("smile scoring failed")

// FaceScore is one detected face and the confidence that it is smiling.
type FaceScore struct {
	XMin  int     `json:"xmin"`
	YMin  int     `json:"ymin"`
	XMax  int     `json:"xmax"`
	YMax  int     `json:"ymax"`
	Smile float64 `json:"smile"`
}

// Scorer turns a frame into zero or more scored faces. The inference
// capability itself is opaque to this service.
type Scorer interface {
	Score(ctx context.Context, frame image.Image) ([]FaceScore, error)
}

type scoreResponse struct {
	Faces []FaceScore `json:"faces"`
}

// HTTPScorer posts JPEG frames to an external inference endpoint.
type HTTPScorer struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPScorer(endpoint string, logger *zap.Logger) *HTTPScorer {
	return &HTTPScorer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (s *HTTPScorer) Score(ctx context.Context, frame image.Image) ([]FaceScore, error) {
	var body bytes.Buffer
	if err := imaging.Encode(&body, frame, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", ErrScoring, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScoring, err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScoring, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: scorer returned %d: %s", ErrScoring, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrScoring, err)
	}

	for _, f := range decoded.Faces {
		if f.Smile < 0 || f.Smile > 1 {
			return nil, fmt.Errorf("%w: smile score %f out of range", ErrScoring, f.Smile)
		}
	}

	s.logger.Debug("scored frame", zap.Int("faces", len(decoded.Faces)))
	return decoded.Faces, nil
}
