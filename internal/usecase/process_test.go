package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Mao1229/moemail/internal/domain"
)

type procFixture struct {
	tasks     *fakeTaskStore
	addresses *fakeAddressStore
	records   *fakeRecordStore
	proc      *Processor
}

func newProcFixture(t *testing.T) *procFixture {
	t.Helper()
	tasks := newFakeTaskStore()
	addresses := newFakeAddressStore()
	records := newFakeRecordStore()
	return &procFixture{
		tasks:     tasks,
		addresses: addresses,
		records:   records,
		proc: &Processor{
			Tasks:        tasks,
			Addresses:    addresses,
			Records:      records,
			Gen:          Generator{Addresses: addresses},
			ChunkSize:    100,
			SubBatchSize: 20,
		},
	}
}

func (f *procFixture) seedTask(t *testing.T, total int, status domain.TaskStatus) *domain.BatchTask {
	t.Helper()
	task := &domain.BatchTask{
		ID:         "task-1",
		OwnerID:    "user-1",
		Domain:     "moemail.app",
		ExpiresIn:  domain.ExpiryNever,
		TotalCount: total,
		Status:     status,
		CreatedAt:  time.Now(),
	}
	if err := f.tasks.Save(context.Background(), task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func TestAdvance_CompletesInThreeChunks(t *testing.T) {
	f := newProcFixture(t)
	f.seedTask(t, 250, domain.StatusPending)
	ctx := context.Background()

	wantProcessed := []int{100, 200, 250}
	for i, want := range wantProcessed {
		snap, err := f.proc.Advance(ctx, "task-1")
		if err != nil {
			t.Fatalf("Advance() call %d error: %v", i+1, err)
		}
		if snap.ProcessedCount != want {
			t.Errorf("call %d: processed = %d, want %d", i+1, snap.ProcessedCount, want)
		}
		if snap.CreatedCount != snap.ProcessedCount {
			t.Errorf("call %d: created = %d, want %d (no collisions)", i+1, snap.CreatedCount, snap.ProcessedCount)
		}
	}

	snap, err := f.proc.Advance(ctx, "task-1")
	if err != nil {
		t.Fatalf("final Advance() error: %v", err)
	}
	if snap.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", snap.Status)
	}
	if snap.CreatedCount != 250 || snap.ProgressPercent != 100 || snap.HasMore {
		t.Errorf("terminal snapshot = %+v, want 250 created, 100%%, no more", snap)
	}
	if len(f.addresses.addrs) != 250 {
		t.Errorf("address store holds %d rows, want 250", len(f.addresses.addrs))
	}

	rec, _ := f.records.GetRecord(ctx, "task-1")
	if rec == nil {
		t.Fatal("permanent record not flushed on completion")
	}
	if rec.Status != domain.StatusCompleted || rec.CreatedCount != 250 {
		t.Errorf("record = %+v, want completed with 250 created", rec)
	}
}

func TestAdvance_MarksProcessingBeforeWork(t *testing.T) {
	f := newProcFixture(t)
	f.seedTask(t, 200, domain.StatusPending)

	snap, err := f.proc.Advance(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if snap.Status != domain.StatusProcessing {
		t.Errorf("status = %s, want processing", snap.Status)
	}
	if snap.ProgressPercent != 50 || !snap.HasMore {
		t.Errorf("snapshot = %+v, want 50%% with more work", snap)
	}
}

func TestAdvance_TerminalIsIdempotent(t *testing.T) {
	f := newProcFixture(t)
	task := f.seedTask(t, 100, domain.StatusPending)
	task.Status = domain.StatusCompleted
	task.ProcessedCount = 100
	task.CreatedCount = 100
	if err := f.tasks.Save(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	savesBefore := f.tasks.saves

	first, err := f.proc.Advance(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	second, err := f.proc.Advance(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("second Advance() error: %v", err)
	}
	if first != second {
		t.Errorf("snapshots differ across calls: %+v vs %+v", first, second)
	}
	if f.tasks.saves != savesBefore {
		t.Errorf("terminal advance wrote the task %d times, want 0", f.tasks.saves-savesBefore)
	}
}

func TestAdvance_MissingTask(t *testing.T) {
	f := newProcFixture(t)
	_, err := f.proc.Advance(context.Background(), "nope")
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("error = %v, want ErrTaskNotFound", err)
	}
}

func TestAdvance_GenerationExhaustedFailsTask(t *testing.T) {
	f := newProcFixture(t)
	f.seedTask(t, 100, domain.StatusPending)
	f.addresses.existsFn = func(string) (bool, error) { return true, nil }

	snap, err := f.proc.Advance(context.Background(), "task-1")
	if !errors.Is(err, domain.ErrGenerationExhausted) {
		t.Fatalf("error = %v, want ErrGenerationExhausted", err)
	}
	if snap.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", snap.Status)
	}
	if snap.Error == "" {
		t.Error("failure message not captured onto the task")
	}

	rec, _ := f.records.GetRecord(context.Background(), "task-1")
	if rec == nil || rec.Status != domain.StatusFailed {
		t.Errorf("permanent record = %+v, want failed", rec)
	}

	// Failed is terminal: a late trigger is a no-op.
	again, err := f.proc.Advance(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Advance() on failed task error: %v", err)
	}
	if again != snap {
		t.Errorf("failed task snapshot changed: %+v vs %+v", again, snap)
	}
}

func TestAdvance_StorageFailureFailsTask(t *testing.T) {
	f := newProcFixture(t)
	f.seedTask(t, 100, domain.StatusPending)
	f.addresses.insertErr = errors.New("disk full")

	snap, err := f.proc.Advance(context.Background(), "task-1")
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("error = %v, want ErrStorageFailure", err)
	}
	if snap.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", snap.Status)
	}
}

func TestAdvance_RecordFlushFailureDoesNotFailChunk(t *testing.T) {
	f := newProcFixture(t)
	f.seedTask(t, 100, domain.StatusPending)
	f.records.upsertErr = errors.New("table locked")

	snap, err := f.proc.Advance(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if snap.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed despite record flush failure", snap.Status)
	}
}

func TestAdvance_CounterInvariantsHold(t *testing.T) {
	f := newProcFixture(t)
	f.seedTask(t, 330, domain.StatusPending)
	ctx := context.Background()

	for {
		snap, err := f.proc.Advance(ctx, "task-1")
		if err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
		if snap.ProcessedCount < 0 || snap.ProcessedCount > snap.TotalCount {
			t.Fatalf("processed %d out of [0, %d]", snap.ProcessedCount, snap.TotalCount)
		}
		if snap.CreatedCount > snap.ProcessedCount {
			t.Fatalf("created %d > processed %d", snap.CreatedCount, snap.ProcessedCount)
		}
		if !snap.HasMore {
			if snap.Status != domain.StatusCompleted {
				t.Fatalf("terminal status = %s, want completed", snap.Status)
			}
			break
		}
	}
}

func TestAdvance_AddressListAccumulates(t *testing.T) {
	f := newProcFixture(t)
	f.seedTask(t, 150, domain.StatusPending)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.proc.Advance(ctx, "task-1"); err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
	}

	task, err := f.tasks.Get(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(task.Addresses) != 150 {
		t.Fatalf("address list holds %d entries, want 150", len(task.Addresses))
	}
	for _, a := range task.Addresses {
		if !strings.HasSuffix(a, "@moemail.app") {
			t.Errorf("address %q missing domain suffix", a)
		}
	}
}
