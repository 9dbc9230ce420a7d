package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"smileclip/config"
	"smileclip/dto"
	"smileclip/events"
	"smileclip/models"
	"smileclip/store"
	"smileclip/validation"
	"smileclip/worker"
)

// Submitter enqueues an accepted upload for background processing.
type Submitter interface {
	Submit(job worker.Job) error
}

type Handler struct {
	store    store.TaskStore
	pool     Submitter
	throttle *Throttle
	events   events.Publisher
	cfg      *config.Config
	logger   *zap.Logger
}

func NewHandler(s store.TaskStore, pool Submitter, throttle *Throttle, pub events.Publisher, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		store:    s,
		pool:     pool,
		throttle: throttle,
		events:   pub,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateTask accepts a multipart video upload, persists a queued task
// record and hands the file to the worker pool. The task record is only
// created once the upload has been validated and written to disk, so a
// rejected request leaves no state behind.
func (h *Handler) CreateTask(c *gin.Context) {
	traceID := GetTraceID(c)

	if err := h.throttle.Check(); err != nil {
		h.logger.Warn("upload throttled", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "server is busy, try again later",
			TraceID: traceID,
		})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "missing file field in multipart form",
			TraceID: traceID,
		})
		return
	}
	defer file.Close()

	if header.Size == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   validation.ErrEmptyFile.Error(),
			TraceID: traceID,
		})
		return
	}
	if header.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   validation.ErrFileTooLarge.Error(),
			TraceID: traceID,
		})
		return
	}

	container, err := validation.DetectVideoType(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   err.Error(),
			TraceID: traceID,
		})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.internalError(c, traceID, "rewinding upload", err)
		return
	}

	taskID := uuid.New().String()
	if err := os.MkdirAll(h.cfg.TempDir, 0o755); err != nil {
		h.internalError(c, traceID, "creating upload directory", err)
		return
	}
	videoPath := filepath.Join(h.cfg.TempDir, taskID+"_"+filepath.Base(header.Filename))

	if err := saveUpload(file, videoPath); err != nil {
		h.internalError(c, traceID, "saving upload", err)
		return
	}

	task := &models.Task{
		ID:        taskID,
		Status:    models.StatusQueued,
		Filename:  header.Filename,
		Results:   []models.SceneResult{},
		TraceID:   traceID,
		FilePath:  videoPath,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Create(c.Request.Context(), task); err != nil {
		os.Remove(videoPath)
		h.internalError(c, traceID, "creating task record", err)
		return
	}

	if err := h.pool.Submit(worker.Job{TaskID: taskID, VideoPath: videoPath}); err != nil {
		// Roll back so a rejected upload leaves no trace.
		os.Remove(videoPath)
		if delErr := h.store.Delete(c.Request.Context(), taskID); delErr != nil {
			h.logger.Error("rolling back task record",
				zap.String("trace_id", traceID),
				zap.String("task_id", taskID),
				zap.Error(delErr))
		}
		if errors.Is(err, worker.ErrBusy) {
			h.logger.Warn("queue full, upload rejected",
				zap.String("trace_id", traceID),
				zap.String("task_id", taskID))
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
				Error:   "server is busy, try again later",
				TraceID: traceID,
			})
			return
		}
		h.internalError(c, traceID, "enqueueing task", err)
		return
	}

	if err := h.events.Publish(c.Request.Context(), events.Event{TaskID: taskID, Status: models.StatusQueued}); err != nil {
		h.logger.Warn("publishing task event", zap.String("task_id", taskID), zap.Error(err))
	}
	h.logger.Info("upload accepted",
		zap.String("trace_id", traceID),
		zap.String("task_id", taskID),
		zap.String("filename", header.Filename),
		zap.String("container", string(container)),
		zap.Int64("size", header.Size))

	c.JSON(http.StatusCreated, dto.CreateTaskResponse{
		TaskID: taskID,
		Status: string(models.StatusQueued),
	})
}

func (h *Handler) GetTask(c *gin.Context) {
	traceID := GetTraceID(c)
	taskID := c.Param("taskID")

	task, err := h.store.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "task not found",
				TraceID: traceID,
			})
			return
		}
		h.internalError(c, traceID, "loading task record", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTask(task))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) internalError(c *gin.Context, traceID, action string, err error) {
	h.logger.Error(action, zap.String("trace_id", traceID), zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "internal server error",
		TraceID: traceID,
	})
}

func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
