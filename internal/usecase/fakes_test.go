package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mao1229/moemail/internal/domain"
)

// In-memory fakes for the storage ports. Mirroring the real stores, the task
// fake serializes on save and hands back fresh copies on load.

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string][]byte
	saves int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string][]byte{}}
}

func (s *fakeTaskStore) Save(ctx context.Context, t *domain.BatchTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Version++
	t.UpdatedAt = time.Now()
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.tasks[t.ID] = b
	s.saves++
	return nil
}

func (s *fakeTaskStore) Get(ctx context.Context, id string) (*domain.BatchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	var t domain.BatchTask
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type fakeAddressStore struct {
	mu          sync.Mutex
	addrs       map[string]domain.Address
	activeCount int
	insertErr   error
	existsFn    func(addr string) (bool, error)
}

func newFakeAddressStore() *fakeAddressStore {
	return &fakeAddressStore{addrs: map[string]domain.Address{}}
}

func (s *fakeAddressStore) Exists(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsFn != nil {
		return s.existsFn(address)
	}
	_, ok := s.addrs[domain.NormalizeAddress(address)]
	return ok, nil
}

func (s *fakeAddressStore) InsertBatch(ctx context.Context, addrs []domain.Address) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	var inserted []string
	for _, a := range addrs {
		key := domain.NormalizeAddress(a.Address)
		if _, taken := s.addrs[key]; taken {
			continue
		}
		a.Address = key
		s.addrs[key] = a
		inserted = append(inserted, key)
	}
	return inserted, nil
}

func (s *fakeAddressStore) CountActive(ctx context.Context, ownerID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCount, nil
}

func (s *fakeAddressStore) ListWindow(ctx context.Context, ownerID, domainName string, from, to time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for key, a := range s.addrs {
		if a.OwnerID != ownerID {
			continue
		}
		if !strings.HasSuffix(key, "@"+domain.NormalizeAddress(domainName)) {
			continue
		}
		if a.CreatedAt.Before(from) || a.CreatedAt.After(to) {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRecordStore struct {
	mu        sync.Mutex
	records   map[string]domain.TaskRecord
	upsertErr error
	lastLimit int
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: map[string]domain.TaskRecord{}}
}

func (s *fakeRecordStore) UpsertRecord(ctx context.Context, rec domain.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.records[rec.TaskID] = rec
	return nil
}

func (s *fakeRecordStore) GetRecord(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeRecordStore) ListRecords(ctx context.Context, ownerID string, limit, offset int) ([]domain.TaskRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	var all []domain.TaskRecord
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

type fakeQueue struct {
	mu         sync.Mutex
	immediate  []domain.Trigger
	delayed    []domain.Trigger
	enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, trg domain.Trigger) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.immediate = append(q.immediate, trg)
	return trg.TaskID, nil
}

func (q *fakeQueue) EnqueueDelayed(ctx context.Context, trg domain.Trigger, runAt time.Time) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.delayed = append(q.delayed, trg)
	return trg.TaskID, nil
}

func (q *fakeQueue) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Trigger, string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.immediate) == 0 {
		return nil, "", nil
	}
	trg := q.immediate[0]
	q.immediate = q.immediate[1:]
	return &trg, trg.TaskID, nil
}

func (q *fakeQueue) Ack(ctx context.Context, streamID string) error { return nil }
