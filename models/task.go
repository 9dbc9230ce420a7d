package models

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransition reports whether the forward-only state machine allows
// moving from s to next. queued -> processing -> complete | error.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusComplete || next == StatusError
	default:
		return false
	}
}

// SceneResult is one ranked smile scene: where it occurs in the source
// video, how confident the scorer was, and the encoded still image.
type SceneResult struct {
	Timestamp string  `json:"timestamp"`
	Score     float64 `json:"score"`
	ImageData string  `json:"image_data"`
}

// Task is the unit of work and the unit of client-visible state.
// Progress is defined only while the task is processing; Results are
// written once, together with the complete status.
type Task struct {
	ID        string        `json:"task_id"`
	Status    Status        `json:"status"`
	Filename  string        `json:"filename"`
	Progress  *int          `json:"progress,omitempty"`
	Results   []SceneResult `json:"results"`
	Error     string        `json:"error,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
	FilePath  string        `json:"file_path,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Clone returns a deep copy so store readers never alias the stored record.
func (t *Task) Clone() *Task {
	c := *t
	if t.Progress != nil {
		p := *t.Progress
		c.Progress = &p
	}
	if t.Results != nil {
		c.Results = make([]SceneResult, len(t.Results))
		copy(c.Results, t.Results)
	}
	return &c
}

// FormatTimestamp renders a position in the source video as HH:MM:SS.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
