package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Scheduler moves due delayed triggers from the scheduled ZSET onto the
// trigger stream.
type Scheduler struct {
	C        *Client
	Interval time.Duration
}

func NewScheduler(c *Client, interval time.Duration) *Scheduler {
	return &Scheduler{C: c, Interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if err := s.moveDue(ctx); err != nil {
			log.Ctx(ctx).Err(err).Msg("move due triggers")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) moveDue(ctx context.Context) error {
	members, err := s.C.Rdb.ZRangeByScore(ctx, s.C.Cfg.ScheduledZSet, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmtFloat(nowMs()),
		Offset: 0,
		Count:  128,
	}).Result()

	if err != nil || len(members) == 0 {
		return err
	}

	for _, m := range members {
		if _, err := s.C.Rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: s.C.Cfg.StreamKey,
			Values: map[string]interface{}{"trigger": m}}).Result(); err == nil {
			_ = s.C.Rdb.ZRem(ctx, s.C.Cfg.ScheduledZSet, m).Err()
		}
	}
	return nil
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
