package dto

import "smileclip/models"

// CreateTaskResponse is the synchronous reply to an accepted upload.
type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is the polling payload for one task. Progress is present
// only while the task is processing.
type TaskResponse struct {
	TaskID   string               `json:"task_id"`
	Status   string               `json:"status"`
	Filename string               `json:"filename"`
	Progress *int                 `json:"progress,omitempty"`
	Results  []models.SceneResult `json:"results"`
	Error    string               `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func FromTask(t *models.Task) *TaskResponse {
	results := t.Results
	if results == nil {
		results = []models.SceneResult{}
	}
	return &TaskResponse{
		TaskID:   t.ID,
		Status:   string(t.Status),
		Filename: t.Filename,
		Progress: t.Progress,
		Results:  results,
		Error:    t.Error,
	}
}
