package events

import (
	"context"

	"smileclip/models"
)

// Event is one task status transition, published for downstream
// consumers that prefer push delivery over polling the task store.
type Event struct {
	TaskID string        `json:"task_id"`
	Status models.Status `json:"status"`
	Error  string        `json:"error,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
