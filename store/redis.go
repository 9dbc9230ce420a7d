package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smileclip/models"
)

const (
	taskKeyPrefix   = "task:"
	txRetryAttempts = 5
	connectTimeout  = 5 * time.Second
)

// RedisStore keeps one JSON document per task key. Updates go through an
// optimistic WATCH transaction so a racing reader sees either the old or
// the new document.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func taskKey(id string) string {
	return taskKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, t *models.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	ok, err := s.client.SetNX(ctx, taskKey(t.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store task %s: %w", t.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Task, error) {
	data, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}

	var t models.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &t, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*models.Task) error) (*models.Task, error) {
	key := taskKey(id)
	var updated *models.Task

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}

		var old models.Task
		if err := json.Unmarshal(data, &old); err != nil {
			return fmt.Errorf("unmarshal task %s: %w", id, err)
		}

		next := old.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		if err := checkMutation(&old, next); err != nil {
			return err
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal task %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}

	for i := 0; i < txRetryAttempts; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("update task %s: transaction contention", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, taskKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
