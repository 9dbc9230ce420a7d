package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"smileclip/api"
	"smileclip/archive"
	"smileclip/config"
	"smileclip/detect"
	"smileclip/encode"
	"smileclip/events"
	"smileclip/source"
	"smileclip/store"
	"smileclip/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskStore, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("connecting to task store", zap.Error(err))
	}
	defer closeStore()

	publisher := buildPublisher(cfg, logger)
	defer publisher.Close()

	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connecting to archive database", zap.Error(err))
		}
		defer repo.Close()
	}

	opener, err := source.NewFFmpegOpener(cfg.FFmpegBin, cfg.FFprobeBin, logger)
	if err != nil {
		logger.Fatal("locating ffmpeg binaries", zap.Error(err))
	}
	scorer := detect.NewHTTPScorer(cfg.ScorerURL, logger)
	encoder := encode.New(cfg.MaxImageSize, logger)

	proc := worker.NewProcessor(taskStore, opener, scorer, encoder, publisher, repo, worker.Options{
		SampleInterval:      cfg.SampleInterval,
		MinSmileScore:       cfg.MinSmileScore,
		TopK:                cfg.TopK,
		DiversityWindow:     cfg.DiversityWindow,
		TaskTimeout:         cfg.TaskTimeout,
		ProgressEvery:       cfg.ProgressEvery,
		ScoringFailureLimit: cfg.ScoringFailureLimit,
	}, logger)

	pool := worker.NewPool(cfg.WorkerCount, cfg.QueueSize, cfg.QueueWait, proc, logger)
	pool.Start(ctx)

	sweepUploads(cfg.TempDir, logger)

	throttle := api.NewThrottle(cfg.ThrottleCPU, cfg.ThrottleFreeMem, cfg.ThrottleFreeDisk, cfg.TempDir, logger)
	handler := api.NewHandler(taskStore, pool, throttle, publisher, cfg, logger)
	router := api.SetupRouter(handler, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	// In-flight tasks finish their current frame loop and write a
	// terminal status before the process exits.
	pool.Wait()
	logger.Info("shutdown complete")
}

func buildStore(cfg *config.Config, logger *zap.Logger) (store.TaskStore, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("no redis address configured, task records are in-memory and lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
	s, err := store.NewRedisStore(cfg.RedisAddr, cfg.TaskTTL)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func buildPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.KafkaBrokers == "" {
		return events.Noop{}
	}
	pub, err := events.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
	if err != nil {
		logger.Warn("kafka unavailable, task events disabled", zap.Error(err))
		return events.Noop{}
	}
	logger.Info("publishing task events", zap.String("topic", cfg.KafkaTopic))
	return pub
}

// sweepUploads removes files stranded by a previous run. Their task
// records expire from the store on their own.
func sweepUploads(dir string, logger *zap.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("sweeping upload directory", zap.Error(err))
		}
		return
	}
	removed := 0
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			logger.Warn("removing stale upload", zap.String("name", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("removed stale uploads", zap.Int("count", removed))
	}
}
