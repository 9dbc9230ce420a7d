package detect

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 32, 32))
}

func TestHTTPScorer_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))

		json.NewEncoder(w).Encode(scoreResponse{Faces: []FaceScore{
			{XMin: 10, YMin: 12, XMax: 40, YMax: 48, Smile: 0.91},
			{XMin: 60, YMin: 20, XMax: 90, YMax: 55, Smile: 0.12},
		}})
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, zaptest.NewLogger(t))
	faces, err := scorer.Score(context.Background(), testFrame())
	require.NoError(t, err)
	require.Len(t, faces, 2)
	assert.Equal(t, 0.91, faces[0].Smile)
	assert.Equal(t, 10, faces[0].XMin)
}

func TestHTTPScorer_NoFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{})
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, zaptest.NewLogger(t))
	faces, err := scorer.Score(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestHTTPScorer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, zaptest.NewLogger(t))
	_, err := scorer.Score(context.Background(), testFrame())
	assert.ErrorIs(t, err, ErrScoring)
}

func TestHTTPScorer_ScoreOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Faces: []FaceScore{{Smile: 1.7}}})
	}))
	defer srv.Close()

	scorer := NewHTTPScorer(srv.URL, zaptest.NewLogger(t))
	_, err := scorer.Score(context.Background(), testFrame())
	assert.ErrorIs(t, err, ErrScoring)
}
