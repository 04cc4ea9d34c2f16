package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/ports"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// History is the read-only projection over permanent task records.
type History struct {
	Tasks     ports.TaskStore
	Records   ports.RecordStore
	Addresses ports.AddressStore
}

// ListHistory returns one page of the owner's terminal tasks, newest first.
func (h History) ListHistory(ctx context.Context, ownerID string, limit, offset int) ([]domain.TaskRecord, int, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return h.Records.ListRecords(ctx, ownerID, limit, offset)
}

// Status returns the owner's view of a task: the live working copy while it
// exists, else a view rebuilt from the permanent record.
func (h History) Status(ctx context.Context, ownerID, taskID string) (*domain.BatchTask, error) {
	t, err := h.Tasks.Get(ctx, taskID)
	if err == nil {
		if t.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
		return t, nil
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, err
	}

	rec, err := h.Records.GetRecord(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrTaskNotFound
	}
	if rec.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return taskFromRecord(rec), nil
}

// DownloadAddresses returns the completed task's address list. While the
// ephemeral copy lives the list is exact; afterwards it is reconstructed from
// the address table by owner, domain suffix, and creation window, which may
// undercount if other batches overlapped.
func (h History) DownloadAddresses(ctx context.Context, ownerID, taskID string) ([]string, error) {
	t, err := h.Tasks.Get(ctx, taskID)
	if err == nil {
		if t.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
		if t.Status != domain.StatusCompleted {
			return nil, fmt.Errorf("%w: task is %s, not completed", domain.ErrInvalidArgument, t.Status)
		}
		return t.Addresses, nil
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, err
	}

	rec, err := h.Records.GetRecord(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrTaskNotFound
	}
	if rec.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	if rec.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: task is %s, not completed", domain.ErrInvalidArgument, rec.Status)
	}

	return h.Addresses.ListWindow(ctx, ownerID, rec.Domain, rec.CreatedAt, rec.CompletedAt, rec.CreatedCount)
}

// taskFromRecord rebuilds an approximate working copy once the ephemeral task
// has expired. Per-chunk counters are gone; the record's terminal counts stand
// in for them.
func taskFromRecord(rec *domain.TaskRecord) *domain.BatchTask {
	processed := rec.TotalCount
	if rec.Status == domain.StatusFailed {
		processed = rec.CreatedCount
	}
	return &domain.BatchTask{
		ID:             rec.TaskID,
		OwnerID:        rec.OwnerID,
		Domain:         rec.Domain,
		TotalCount:     rec.TotalCount,
		ProcessedCount: processed,
		CreatedCount:   rec.CreatedCount,
		Status:         rec.Status,
		Error:          rec.Error,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.CompletedAt,
	}
}
