package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mp4Header() []byte {
	b := make([]byte, 32)
	copy(b, []byte{0x00, 0x00, 0x00, 0x18})
	copy(b[4:], []byte("ftypisom"))
	return b
}

func TestDetectVideoType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want VideoType
		err  error
	}{
		{"mp4", mp4Header(), VideoTypeMP4, nil},
		{"webm", append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 20)...), VideoTypeMatroska, nil},
		{"avi", append(append([]byte("RIFF"), 0x24, 0x00, 0x00, 0x00), []byte("AVI LIST")...), VideoTypeAVI, nil},
		{"jpeg", append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 20)...), "", ErrNotVideo},
		{"text", []byte("definitely not a video file"), "", ErrNotVideo},
		{"empty", nil, "", ErrEmptyFile},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectVideoType(bytes.NewReader(tc.data))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetectVideoType_ShortMP4(t *testing.T) {
	// Fewer than 12 bytes can never be a playable container.
	_, err := DetectVideoType(bytes.NewReader([]byte{0x00, 0x00, 0x00}))
	assert.ErrorIs(t, err, ErrNotVideo)
}
