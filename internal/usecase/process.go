package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/metrics"
	"github.com/Mao1229/moemail/internal/ports"
)

// Processor advances a batch task by one bounded chunk per invocation.
// Invocations are short-lived, stateless, and at-least-once: the worker, the
// creator's initial trigger, and client polls may all race on the same task.
// There is no lock; correctness leans on the address table's uniqueness
// constraint and on the task's counters being monotonic. Two truly
// overlapping invocations can still clobber each other's counter update,
// which under-counts progress and costs one extra polling cycle to converge.
type Processor struct {
	Tasks     ports.TaskStore
	Addresses ports.AddressStore
	Records   ports.RecordStore
	Gen       Generator

	ChunkSize    int
	SubBatchSize int
}

// Advance moves the task forward by one chunk and returns the resulting
// snapshot. Terminal tasks are returned unchanged. Unrecoverable generation
// or persistence errors mark the task failed; the error is still returned so
// the immediate caller sees the failure.
func (p *Processor) Advance(ctx context.Context, taskID string) (domain.ProgressSnapshot, error) {
	t, err := p.Tasks.Get(ctx, taskID)
	if err != nil {
		return domain.ProgressSnapshot{}, err
	}
	if t.Status.Terminal() {
		return t.Snapshot(), nil
	}

	// Persist the processing transition before any generation work so a
	// concurrent trigger observes processing, not pending.
	if t.Status == domain.StatusPending {
		t.Status = domain.StatusProcessing
		if err := p.Tasks.Save(ctx, t); err != nil {
			return domain.ProgressSnapshot{}, fmt.Errorf("mark task processing: %w", err)
		}
	}

	start := time.Now()
	chunk := min(p.chunkSize(), t.Remaining())

	accepted, err := p.Gen.Generate(ctx, t.Domain, chunk)
	if err != nil {
		return p.fail(ctx, t, err)
	}
	if len(accepted) == 0 {
		return p.fail(ctx, t, fmt.Errorf("%w: no unique address in %d attempts",
			domain.ErrGenerationExhausted, chunk*attemptMultiplier))
	}

	persisted, err := p.persist(ctx, t, accepted)
	t.ProcessedCount += len(accepted)
	if t.ProcessedCount > t.TotalCount {
		t.ProcessedCount = t.TotalCount
	}
	t.CreatedCount += len(persisted)
	t.Addresses = append(t.Addresses, persisted...)
	metrics.AddressesCreated.Add(float64(len(persisted)))
	if err != nil {
		return p.fail(ctx, t, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err))
	}

	if t.ProcessedCount >= t.TotalCount {
		t.Status = domain.StatusCompleted
		p.flushRecord(ctx, t)
	}

	if err := p.Tasks.Save(ctx, t); err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("save task progress: %w", err)
	}

	metrics.ChunksProcessed.Inc()
	metrics.ChunkDuration.Observe(time.Since(start).Seconds())
	return t.Snapshot(), nil
}

// persist writes accepted addresses in small sub-batches and returns those
// actually inserted. A collision slipping past the generator's pre-check is
// dropped by the storage constraint, not re-created.
func (p *Processor) persist(ctx context.Context, t *domain.BatchTask, accepted []string) ([]string, error) {
	now := time.Now()
	var expiresAt time.Time
	if t.ExpiresIn != domain.ExpiryNever {
		expiresAt = now.Add(t.ExpiresIn)
	}

	records := make([]domain.Address, len(accepted))
	for i, addr := range accepted {
		records[i] = domain.Address{
			ID:        uuid.NewString(),
			Address:   addr,
			OwnerID:   t.OwnerID,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}
	}

	var persisted []string
	for start := 0; start < len(records); start += p.subBatchSize() {
		end := min(start+p.subBatchSize(), len(records))
		inserted, err := p.Addresses.InsertBatch(ctx, records[start:end])
		persisted = append(persisted, inserted...)
		if err != nil {
			return persisted, err
		}
	}
	return persisted, nil
}

// fail captures the error onto the task and flushes both stores, best-effort.
func (p *Processor) fail(ctx context.Context, t *domain.BatchTask, cause error) (domain.ProgressSnapshot, error) {
	t.Status = domain.StatusFailed
	t.Error = cause.Error()

	if err := p.Tasks.Save(ctx, t); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task", t.ID).Msg("record task failure")
	}
	p.flushRecord(ctx, t)
	return t.Snapshot(), cause
}

// flushRecord upserts the permanent record for a terminal task. Failures are
// logged only: the ephemeral working copy stays authoritative for the client.
func (p *Processor) flushRecord(ctx context.Context, t *domain.BatchTask) {
	if err := p.Records.UpsertRecord(ctx, domain.RecordFromTask(t, time.Now())); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task", t.ID).Msg("flush permanent record")
		return
	}
	metrics.TasksFinished.WithLabelValues(string(t.Status)).Inc()
}

func (p *Processor) chunkSize() int {
	if p.ChunkSize > 0 {
		return p.ChunkSize
	}
	return 100
}

func (p *Processor) subBatchSize() int {
	if p.SubBatchSize > 0 {
		return p.SubBatchSize
	}
	return 20
}
