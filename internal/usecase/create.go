package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mao1229/moemail/internal/config"
	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/metrics"
	"github.com/Mao1229/moemail/internal/ports"
)

// Driver validates and creates batch tasks, then hands the first trigger to
// the queue. It never runs generation work itself.
type Driver struct {
	Tasks     ports.TaskStore
	Addresses ports.AddressStore
	Triggers  ports.TriggerQueue

	Batch config.Batch
	Quota config.Quota
}

// CreateBatch persists a pending task and enqueues its first trigger.
// The trigger enqueue is best-effort: the client polls the process endpoint
// anyway, so a lost first trigger only delays the start.
func (d Driver) CreateBatch(ctx context.Context, user domain.User, domainName string, expiresIn time.Duration, totalCount int) (*domain.BatchTask, error) {
	if !slices.Contains(d.Batch.AllowedDomains, domainName) {
		return nil, fmt.Errorf("%w: domain %q is not available", domain.ErrInvalidArgument, domainName)
	}
	if totalCount <= 0 || totalCount > d.Batch.MaxBatchSize {
		return nil, fmt.Errorf("%w: total count must be between 1 and %d", domain.ErrInvalidArgument, d.Batch.MaxBatchSize)
	}

	// Quota before the threshold check: a request that cannot fit under the
	// ceiling is rejected as such even when it is also too small for the
	// async path.
	if !d.Quota.Exempt(user.Role) {
		active, err := d.Addresses.CountActive(ctx, user.ID, time.Now())
		if err != nil {
			return nil, fmt.Errorf("count active addresses: %w", err)
		}
		ceiling := d.Quota.LimitFor(user.Role)
		if active+totalCount > ceiling {
			return nil, fmt.Errorf("%w: %d active + %d requested exceeds limit of %d",
				domain.ErrQuotaExceeded, active, totalCount, ceiling)
		}
	}

	if totalCount < d.Batch.AsyncThreshold {
		return nil, fmt.Errorf("%w: batches under %d addresses use the synchronous create endpoint",
			domain.ErrInvalidArgument, d.Batch.AsyncThreshold)
	}

	now := time.Now()
	t := &domain.BatchTask{
		ID:         uuid.NewString(),
		OwnerID:    user.ID,
		Domain:     domainName,
		ExpiresIn:  expiresIn,
		TotalCount: totalCount,
		Status:     domain.StatusPending,
		CreatedAt:  now,
	}
	if err := d.Tasks.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}

	trg := domain.Trigger{TaskID: t.ID, MaxAttempts: d.Batch.TriggerMaxAttempts}
	if _, err := d.Triggers.Enqueue(ctx, trg); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("task", t.ID).
			Msg("enqueue first trigger failed, relying on client polling")
	}

	metrics.TasksCreated.Inc()
	return t, nil
}
