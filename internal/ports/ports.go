package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/Mao1229/moemail/internal/domain"
)

// TaskStore is the ephemeral working-copy store. Save refreshes the retention
// window and bumps the task version; Get returns domain.ErrTaskNotFound once
// the key has expired.
type TaskStore interface {
	Save(ctx context.Context, t *domain.BatchTask) error
	Get(ctx context.Context, id string) (*domain.BatchTask, error)
}

// AddressStore is the durable address table. Its uniqueness constraint on the
// normalized address string is the sole arbiter of collision correctness.
type AddressStore interface {
	Exists(ctx context.Context, address string) (bool, error)
	// InsertBatch inserts the given addresses, silently skipping any that
	// collide, and returns the address strings actually persisted.
	InsertBatch(ctx context.Context, addrs []domain.Address) ([]string, error)
	// CountActive counts the owner's addresses not yet expired at now.
	CountActive(ctx context.Context, ownerID string, now time.Time) (int, error)
	// ListWindow lists the owner's addresses under @domainName created within
	// [from, to], oldest first, capped at limit.
	ListWindow(ctx context.Context, ownerID, domainName string, from, to time.Time, limit int) ([]string, error)
}

// RecordStore is the permanent history of terminal tasks.
type RecordStore interface {
	UpsertRecord(ctx context.Context, rec domain.TaskRecord) error
	// GetRecord returns nil when no record exists.
	GetRecord(ctx context.Context, taskID string) (*domain.TaskRecord, error)
	// ListRecords returns one page newest-first plus the owner's total count.
	ListRecords(ctx context.Context, ownerID string, limit, offset int) ([]domain.TaskRecord, int, error)
}

// TriggerQueue delivers chunk triggers to workers, at least once.
type TriggerQueue interface {
	Enqueue(ctx context.Context, trg domain.Trigger) (string, error)
	EnqueueDelayed(ctx context.Context, trg domain.Trigger, runAt time.Time) (string, error)
	Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Trigger, string /*streamID*/, error)
	Ack(ctx context.Context, streamID string) error
}

// UserContext resolves the acting user from an incoming request. The actual
// authentication happens upstream; this only reads its result.
type UserContext interface {
	Resolve(r *http.Request) (domain.User, error)
}
