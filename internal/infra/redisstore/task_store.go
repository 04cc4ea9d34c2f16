package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/ports"
)

var _ ports.TaskStore = (*Client)(nil)

func taskKey(id string) string {
	return "batch_task:" + id
}

// Save writes the whole task document as JSON and refreshes the retention
// window. The version bump happens here so every write path gets it; there is
// no compare on write, last writer wins.
func (c *Client) Save(ctx context.Context, t *domain.BatchTask) error {
	t.Version++
	t.UpdatedAt = time.Now()

	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	if err := c.Rdb.Set(ctx, taskKey(t.ID), b, c.Cfg.TaskTTL).Err(); err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, id string) (*domain.BatchTask, error) {
	b, err := c.Rdb.Get(ctx, taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}

	var t domain.BatchTask
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &t, nil
}
