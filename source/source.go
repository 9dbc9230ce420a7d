package source

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrDecode marks a video that cannot be opened or sampled. It is fatal
// to the owning task.
var ErrDecode = errors.New("cannot decode video")

// Frame is one sampled still image and its position in the source video.
type Frame struct {
	Timestamp time.Duration
	Image     image.Image
}

// FrameSource yields sampled frames in timestamp order. Next returns
// io.EOF when the source is exhausted.
type FrameSource interface {
	// TotalFrames is the number of frames the source will yield,
	// used for progress accounting. Zero means unknown.
	TotalFrames() int
	Next() (Frame, error)
	Close() error
}

// Opener produces a FrameSource over a video file at the given sampling
// interval.
type Opener interface {
	Open(ctx context.Context, videoPath string, interval time.Duration) (FrameSource, error)
}
