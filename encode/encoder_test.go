package encode

import (
	"encoding/base64"
	"image"
	"image/color"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// noisyImage compresses poorly, which forces the retry ladder.
func noisyImage(size int) image.Image {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{
				uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255,
			})
		}
	}
	return img
}

func flatImage(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{200, 180, 160, 255})
		}
	}
	return img
}

func TestEncoder_UnderCapFirstTry(t *testing.T) {
	enc := New(5*1024*1024, zaptest.NewLogger(t))

	uri, err := enc.Encode(flatImage(64))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
	assert.LessOrEqual(t, int64(len(uri)), int64(5*1024*1024))

	payload := strings.TrimPrefix(uri, "data:image/jpeg;base64,")
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	// JPEG SOI marker.
	assert.Equal(t, []byte{0xFF, 0xD8}, raw[:2])
}

func TestEncoder_RetriesBringImageUnderCap(t *testing.T) {
	// Tight cap: a noisy 512px frame needs quality drops and downscales.
	capBytes := int64(24 * 1024)
	enc := New(capBytes, zaptest.NewLogger(t))

	uri, err := enc.Encode(noisyImage(512))
	require.NoError(t, err)
	assert.LessOrEqual(t, int64(len(uri)), capBytes)
}

func TestEncoder_SizeLimitOverflow(t *testing.T) {
	// No JPEG of a noisy frame fits in 100 bytes even at the floor.
	enc := New(100, zaptest.NewLogger(t))

	_, err := enc.Encode(noisyImage(256))
	assert.ErrorIs(t, err, ErrSizeLimit)
}

func TestEncoder_EveryResultRespectsCap(t *testing.T) {
	caps := []int64{8 * 1024, 32 * 1024, 128 * 1024}
	for _, c := range caps {
		enc := New(c, zaptest.NewLogger(t))
		uri, err := enc.Encode(noisyImage(256))
		if err != nil {
			assert.ErrorIs(t, err, ErrSizeLimit)
			continue
		}
		assert.LessOrEqual(t, int64(len(uri)), c)
	}
}
