package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/ports"
	"github.com/Mao1229/moemail/pkg/backoff"
)

// Consumer drains the trigger queue, advancing one chunk per claimed trigger.
// A task in flight re-enqueues its own next trigger while work remains, so a
// single trigger at creation is enough to drive the batch to completion.
type Consumer struct {
	Queue        ports.TriggerQueue
	Processor    *Processor
	ConsumerName string
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (c Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		trg, id, err := c.Queue.Claim(ctx, c.ConsumerName, 5*time.Second)
		if err != nil {
			continue
		}
		if trg == nil {
			continue
		}

		snap, err := c.Processor.Advance(ctx, trg.TaskID)
		_ = c.Queue.Ack(ctx, id)

		if err != nil {
			c.retry(ctx, *trg, err)
			continue
		}

		if snap.HasMore {
			next := domain.Trigger{TaskID: trg.TaskID, MaxAttempts: trg.MaxAttempts}
			if _, err := c.Queue.Enqueue(ctx, next); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("task", trg.TaskID).
					Msg("re-enqueue trigger failed, client polling takes over")
			}
		}
	}
}

// retry re-enqueues a failed trigger with jittered delay until its attempt
// budget runs out. A vanished or permanently failed task is dropped; the
// client's poll trigger remains as the fallback path.
func (c Consumer) retry(ctx context.Context, trg domain.Trigger, cause error) {
	if errors.Is(cause, domain.ErrTaskNotFound) {
		log.Ctx(ctx).Warn().Str("task", trg.TaskID).Msg("trigger for missing task dropped")
		return
	}

	trg.Attempts++
	if trg.Attempts >= trg.MaxAttempts {
		log.Ctx(ctx).Error().Err(cause).Str("task", trg.TaskID).
			Int("attempts", trg.Attempts).Msg("trigger attempts exhausted")
		return
	}

	delay := backoff.ExponentialJitter(c.BaseBackoff, c.MaxBackoff, trg.Attempts)
	if _, err := c.Queue.EnqueueDelayed(ctx, trg, time.Now().Add(delay)); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task", trg.TaskID).Msg("schedule trigger retry")
	}
}
