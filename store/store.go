package store

import (
	"context"
	"errors"
	"fmt"

	"smileclip/models"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrAlreadyExists     = errors.New("task already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrProgressRegressed = errors.New("progress may not decrease")
)

// TaskStore persists one record per task. Update applies the mutator
// atomically: concurrent readers observe either the pre- or post-update
// snapshot, never a torn record.
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, mutate func(*models.Task) error) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

// checkMutation enforces the record invariants shared by all store
// implementations: forward-only status transitions, immutable terminal
// records, and monotone progress.
func checkMutation(old, updated *models.Task) error {
	if updated.ID != old.ID {
		return fmt.Errorf("task id is immutable")
	}

	if updated.Status != old.Status {
		if !old.Status.CanTransition(updated.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.Status, updated.Status)
		}
	} else if old.Status.Terminal() {
		return fmt.Errorf("%w: record is terminal (%s)", ErrInvalidTransition, old.Status)
	}

	if old.Progress != nil && updated.Progress != nil && *updated.Progress < *old.Progress {
		return fmt.Errorf("%w: %d -> %d", ErrProgressRegressed, *old.Progress, *updated.Progress)
	}
	if updated.Progress != nil && (*updated.Progress < 0 || *updated.Progress > 100) {
		return fmt.Errorf("progress out of range: %d", *updated.Progress)
	}

	return nil
}
