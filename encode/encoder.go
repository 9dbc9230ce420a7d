package encode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// ErrSizeLimit means no quality or resolution retry brought the encoded
// image under the cap. The scene is dropped; the task still completes.
var ErrSizeLimit = errors.New("encoded image exceeds size cap")

const dataURIPrefix = "data:image/jpeg;base64,"

// minWidth is the resolution floor for downscale retries.
const minWidth = 64

var qualityLadder = []int{85, 70, 55, 40}

// Encoder converts frames into size-capped base64 JPEG data URIs. When an
// encoding overflows the cap it retries down a quality ladder, then at
// progressively halved resolutions.
type Encoder struct {
	maxBytes int64
	logger   *zap.Logger
}

func New(maxBytes int64, logger *zap.Logger) *Encoder {
	return &Encoder{maxBytes: maxBytes, logger: logger}
}

// Encode returns a data URI no longer than the configured cap, or
// ErrSizeLimit when the floor is reached without satisfying it.
func (e *Encoder) Encode(img image.Image) (string, error) {
	current := img
	for {
		for _, quality := range qualityLadder {
			uri, err := encodeDataURI(current, quality)
			if err != nil {
				return "", fmt.Errorf("encode jpeg: %w", err)
			}
			if int64(len(uri)) <= e.maxBytes {
				if quality != qualityLadder[0] || current != img {
					e.logger.Debug("image fit under cap after retries",
						zap.Int("quality", quality),
						zap.Int("width", current.Bounds().Dx()),
						zap.Int("bytes", len(uri)),
					)
				}
				return uri, nil
			}
		}

		width := current.Bounds().Dx()
		if width/2 < minWidth {
			return "", fmt.Errorf("%w: %d byte cap", ErrSizeLimit, e.maxBytes)
		}
		current = imaging.Resize(current, width/2, 0, imaging.Lanczos)
	}
}

func encodeDataURI(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
