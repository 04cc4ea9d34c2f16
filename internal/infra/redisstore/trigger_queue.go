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

var _ ports.TriggerQueue = (*Client)(nil)

func (c *Client) Enqueue(ctx context.Context, trg domain.Trigger) (string, error) {
	b, _ := json.Marshal(trg)
	id, err := c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.StreamKey,
		Values: map[string]interface{}{"trigger": b},
	}).Result()

	if err != nil {
		return "", err
	}
	return id, nil
}

// EnqueueDelayed parks the trigger on the scheduled ZSET; the scheduler moves
// it onto the stream once due. The member is the trigger document itself so
// the move needs no extra lookup.
func (c *Client) EnqueueDelayed(ctx context.Context, trg domain.Trigger, runAt time.Time) (string, error) {
	b, _ := json.Marshal(trg)
	score := float64(runAt.UnixMilli())
	if err := c.Rdb.ZAdd(ctx, c.Cfg.ScheduledZSet, redis.Z{Score: score,
		Member: string(b)}).Err(); err != nil {
		return "", err
	}
	return trg.TaskID, nil
}

func (c *Client) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Trigger, string, error) {
	res, err := c.Rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.Cfg.Group,
		Consumer: consumer,
		Streams:  []string{c.Cfg.StreamKey, ">"},
		Count:    1,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := res[0].Messages[0]
	raw := msg.Values["trigger"]
	var trg domain.Trigger
	switch v := raw.(type) {
	case string:
		_ = json.Unmarshal([]byte(v), &trg)
	case []byte:
		_ = json.Unmarshal(v, &trg)
	default:
		return nil, "", fmt.Errorf("unexpected trigger type: %T", v)
	}
	return &trg, msg.ID, nil
}

func (c *Client) Ack(ctx context.Context, streamID string) error {
	return c.Rdb.XAck(ctx, c.Cfg.StreamKey, c.Cfg.Group, streamID).Err()
}
