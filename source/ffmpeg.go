package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// FFmpegOpener extracts frames by shelling out to ffmpeg. Each Open call
// probes the container, dumps JPEG frames at the sampling interval into a
// scoped temp directory, and hands back a source that loads them lazily.
type FFmpegOpener struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *zap.Logger
}

func NewFFmpegOpener(ffmpegBin, ffprobeBin string, logger *zap.Logger) (*FFmpegOpener, error) {
	if _, err := exec.LookPath(ffmpegBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found in PATH: %s", ffmpegBin)
	}
	if _, err := exec.LookPath(ffprobeBin); err != nil {
		return nil, fmt.Errorf("ffprobe binary not found in PATH: %s", ffprobeBin)
	}
	return &FFmpegOpener{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}, nil
}

func (o *FFmpegOpener) Open(ctx context.Context, videoPath string, interval time.Duration) (FrameSource, error) {
	duration, err := o.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "smileclip_frames_")
	if err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", fpsFilter(interval),
		"-q:v", "2",
		filepath.Join(dir, "frame_%06d.jpg"),
	}

	cmd := exec.CommandContext(ctx, o.ffmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	files, err := listFrameFiles(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if len(files) == 0 {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: no frames extracted", ErrDecode)
	}

	o.logger.Debug("frame extraction finished",
		zap.String("video", videoPath),
		zap.Duration("duration", duration),
		zap.Int("frames", len(files)),
	)

	return &frameDirSource{dir: dir, files: files, interval: interval}, nil
}

func (o *FFmpegOpener) probeDuration(ctx context.Context, videoPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, o.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %v", ErrDecode, err)
	}
	return parseProbeDuration(string(out))
}

func parseProbeDuration(out string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unreadable duration %q", ErrDecode, strings.TrimSpace(out))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func fpsFilter(interval time.Duration) string {
	return fmt.Sprintf("fps=%g", 1/interval.Seconds())
}

func listFrameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// frameDirSource walks a directory of extracted frames. Frame i sits at
// i * interval in the source video.
type frameDirSource struct {
	dir      string
	files    []string
	interval time.Duration
	idx      int
}

func (s *frameDirSource) TotalFrames() int {
	return len(s.files)
}

func (s *frameDirSource) Next() (Frame, error) {
	if s.idx >= len(s.files) {
		return Frame{}, io.EOF
	}

	path := s.files[s.idx]
	img, err := imaging.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: load frame %s: %v", ErrDecode, filepath.Base(path), err)
	}

	frame := Frame{
		Timestamp: time.Duration(s.idx) * s.interval,
		Image:     img,
	}
	s.idx++
	return frame, nil
}

func (s *frameDirSource) Close() error {
	return os.RemoveAll(s.dir)
}
