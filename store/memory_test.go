package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smileclip/models"
)

func newTask(id string) *models.Task {
	return &models.Task{
		ID:       id,
		Status:   models.StatusQueued,
		Filename: "clip.mp4",
		Results:  []models.SceneResult{},
	}
}

func TestMemoryStore_CreateGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTask("t1")))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, models.StatusQueued, got.Status)

	err = s.Create(ctx, newTask("t1"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTask("t1")))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	got.Filename = "mutated.mp4"

	again, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", again.Filename)
}

func TestMemoryStore_UpdateTransitions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTask("t1")))

	// queued -> processing
	updated, err := s.Update(ctx, "t1", func(task *models.Task) error {
		task.Status = models.StatusProcessing
		p := 0
		task.Progress = &p
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, updated.Status)

	// processing -> queued is rejected
	_, err = s.Update(ctx, "t1", func(task *models.Task) error {
		task.Status = models.StatusQueued
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// processing -> complete
	_, err = s.Update(ctx, "t1", func(task *models.Task) error {
		task.Status = models.StatusComplete
		p := 100
		task.Progress = &p
		return nil
	})
	require.NoError(t, err)

	// terminal records are immutable
	_, err = s.Update(ctx, "t1", func(task *models.Task) error {
		task.Error = "late write"
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// a failed update leaves the record untouched
	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status)
	assert.Empty(t, got.Error)
}

func TestMemoryStore_ProgressNeverRegresses(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTask("t1")))

	_, err := s.Update(ctx, "t1", func(task *models.Task) error {
		task.Status = models.StatusProcessing
		p := 50
		task.Progress = &p
		return nil
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, "t1", func(task *models.Task) error {
		p := 30
		task.Progress = &p
		return nil
	})
	assert.ErrorIs(t, err, ErrProgressRegressed)

	_, err = s.Update(ctx, "t1", func(task *models.Task) error {
		p := 120
		task.Progress = &p
		return nil
	})
	assert.Error(t, err)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTask("t1")))

	require.NoError(t, s.Delete(ctx, "t1"))
	_, err := s.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "t1"), ErrNotFound)
}

func TestMemoryStore_ConcurrentReadersAndWriter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTask("t1")))

	_, err := s.Update(ctx, "t1", func(task *models.Task) error {
		task.Status = models.StatusProcessing
		p := 0
		task.Progress = &p
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			p := i
			_, err := s.Update(ctx, "t1", func(task *models.Task) error {
				task.Progress = &p
				return nil
			})
			assert.NoError(t, err)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := -1
			for i := 0; i < 100; i++ {
				got, err := s.Get(ctx, "t1")
				assert.NoError(t, err)
				if got.Progress != nil {
					assert.GreaterOrEqual(t, *got.Progress, last)
					last = *got.Progress
				}
			}
		}()
	}

	wg.Wait()
}
