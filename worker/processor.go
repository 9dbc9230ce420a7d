package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"smileclip/archive"
	"smileclip/detect"
	"smileclip/encode"
	"smileclip/events"
	"smileclip/models"
	"smileclip/rank"
	"smileclip/source"
	"smileclip/store"
)

// finalizeTimeout bounds the terminal store write. It runs on a fresh
// context because the per-task budget may already be exhausted.
const finalizeTimeout = 10 * time.Second

type Options struct {
	SampleInterval      time.Duration
	MinSmileScore       float64
	TopK                int
	DiversityWindow     time.Duration
	TaskTimeout         time.Duration
	ProgressEvery       int
	ScoringFailureLimit int
}

// Processor executes one task end to end: sample, score, rank, encode,
// finalize. It is the sole writer of the task record while the task is
// processing.
type Processor struct {
	store   store.TaskStore
	opener  source.Opener
	scorer  detect.Scorer
	encoder *encode.Encoder
	events  events.Publisher
	archive *archive.Repository
	opts    Options
	logger  *zap.Logger
}

func NewProcessor(
	taskStore store.TaskStore,
	opener source.Opener,
	scorer detect.Scorer,
	encoder *encode.Encoder,
	publisher events.Publisher,
	repo *archive.Repository,
	opts Options,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		store:   taskStore,
		opener:  opener,
		scorer:  scorer,
		encoder: encoder,
		events:  publisher,
		archive: repo,
		opts:    opts,
		logger:  logger,
	}
}

func (p *Processor) Run(ctx context.Context, job Job) {
	start := time.Now()
	logger := p.logger.With(zap.String("task_id", job.TaskID))

	defer func() {
		if err := os.Remove(job.VideoPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove uploaded video", zap.Error(err))
		}
	}()

	taskCtx, cancel := context.WithTimeout(ctx, p.opts.TaskTimeout)
	defer cancel()

	_, err := p.store.Update(taskCtx, job.TaskID, func(t *models.Task) error {
		t.Status = models.StatusProcessing
		progress := 0
		t.Progress = &progress
		return nil
	})
	if err != nil {
		logger.Error("cannot claim task", zap.Error(err))
		return
	}
	p.publish(job.TaskID, models.StatusProcessing, "")
	logger.Info("processing task")

	results, err := p.process(taskCtx, job, logger)
	if err != nil {
		p.finishError(job.TaskID, start, err, logger)
		return
	}
	p.finishComplete(job.TaskID, start, results, logger)
}

// process runs the sampling loop and returns the encoded top scenes.
// Isolated per-frame and per-scene failures are absorbed here; only
// whole-task failures surface as an error.
func (p *Processor) process(ctx context.Context, job Job, logger *zap.Logger) ([]models.SceneResult, error) {
	src, err := p.opener.Open(ctx, job.VideoPath, p.opts.SampleInterval)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ranker := rank.New(p.opts.TopK, p.opts.MinSmileScore, p.opts.DiversityWindow)
	total := src.TotalFrames()
	processed := 0
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("processing budget exceeded: %w", err)
		}

		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		faces, err := p.scorer.Score(ctx, frame.Image)
		if err != nil {
			consecutiveFailures++
			logger.Warn("frame scoring failed, skipping frame",
				zap.Int("consecutive_failures", consecutiveFailures),
				zap.Error(err),
			)
			if consecutiveFailures > p.opts.ScoringFailureLimit {
				return nil, fmt.Errorf("scoring failed on %d consecutive frames: %w", consecutiveFailures, err)
			}
		} else {
			consecutiveFailures = 0
			for _, face := range faces {
				ranker.Offer(rank.Candidate{
					Timestamp: frame.Timestamp,
					Score:     face.Smile,
					Frame:     frame.Image,
				})
			}
		}

		processed++
		if total > 0 && processed%p.opts.ProgressEvery == 0 {
			p.writeProgress(ctx, job.TaskID, processed*100/total, logger)
		}
	}

	results := make([]models.SceneResult, 0, p.opts.TopK)
	for _, cand := range ranker.Finalize() {
		data, err := p.encoder.Encode(cand.Frame)
		if err != nil {
			if errors.Is(err, encode.ErrSizeLimit) {
				logger.Warn("scene dropped: encoded image cannot fit under size cap",
					zap.Duration("timestamp", cand.Timestamp),
					zap.Float64("score", cand.Score),
				)
			} else {
				logger.Warn("scene dropped: encoding failed", zap.Error(err))
			}
			continue
		}
		results = append(results, models.SceneResult{
			Timestamp: models.FormatTimestamp(cand.Timestamp),
			Score:     cand.Score,
			ImageData: data,
		})
	}
	return results, nil
}

func (p *Processor) writeProgress(ctx context.Context, taskID string, pct int, logger *zap.Logger) {
	if pct > 100 {
		pct = 100
	}
	_, err := p.store.Update(ctx, taskID, func(t *models.Task) error {
		if t.Progress == nil || pct > *t.Progress {
			t.Progress = &pct
		}
		return nil
	})
	if err != nil {
		logger.Warn("progress update failed", zap.Error(err))
	}
}

func (p *Processor) finishComplete(taskID string, start time.Time, results []models.SceneResult, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	updated, err := p.store.Update(ctx, taskID, func(t *models.Task) error {
		t.Status = models.StatusComplete
		progress := 100
		t.Progress = &progress
		t.Results = results
		return nil
	})
	if err != nil {
		logger.Error("failed to write final record", zap.Error(err))
		return
	}

	p.publish(taskID, models.StatusComplete, "")
	p.record(updated, start, logger)
	logger.Info("task complete",
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (p *Processor) finishError(taskID string, start time.Time, taskErr error, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	updated, err := p.store.Update(ctx, taskID, func(t *models.Task) error {
		t.Status = models.StatusError
		t.Error = taskErr.Error()
		return nil
	})
	if err != nil {
		logger.Error("failed to write error record", zap.Error(err))
		return
	}

	p.publish(taskID, models.StatusError, taskErr.Error())
	p.record(updated, start, logger)
	logger.Error("task failed", zap.Error(taskErr), zap.Duration("elapsed", time.Since(start)))
}

func (p *Processor) publish(taskID string, status models.Status, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev := events.Event{TaskID: taskID, Status: status, Error: errMsg}
	if err := p.events.Publish(ctx, ev); err != nil {
		p.logger.Warn("event publish failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (p *Processor) record(t *models.Task, start time.Time, logger *zap.Logger) {
	if p.archive == nil {
		return
	}

	best := 0.0
	for _, r := range t.Results {
		if r.Score > best {
			best = r.Score
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary := archive.Summary{
		TaskID:      t.ID,
		Filename:    t.Filename,
		Status:      t.Status,
		Duration:    time.Since(start),
		ResultCount: len(t.Results),
		BestScore:   best,
	}
	if err := p.archive.Record(ctx, summary); err != nil {
		logger.Warn("task archive failed", zap.Error(err))
	}
}
