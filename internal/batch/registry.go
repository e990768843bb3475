package batch

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

var (
	ErrBatchExists       = errors.New("batch already registered")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Snapshot is a point-in-time copy of a registered batch.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Tasks     []entity.BatchTask
}

// Terminal reports whether every task has reached Completed or Failed.
func (s Snapshot) Terminal() bool {
	for _, t := range s.Tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// LastEnd is the latest task end time, or CreatedAt when no task ended.
func (s Snapshot) LastEnd() time.Time {
	last := s.CreatedAt
	for _, t := range s.Tasks {
		if t.EndTime.After(last) {
			last = t.EndTime
		}
	}
	return last
}

// Update describes one task status change.
type Update struct {
	Status constants.TaskStatus
	At     time.Time
	Result *entity.Recognition
	Error  *entity.ErrorPayload
}

// Registry is the scheduler's task store. Implementations must be safe for
// concurrent use and must refuse transitions that TaskStatus.CanTransition
// rejects.
type Registry interface {
	Create(id string, createdAt time.Time, tasks []entity.BatchTask) error
	Transition(batchID string, index int, u Update) (entity.BatchTask, error)
	CancelPending(batchID string, reason entity.ErrorPayload, at time.Time) (int, error)
	Get(batchID string) (Snapshot, bool)
	List() []Snapshot
	Delete(batchIDs ...string) int
}

type memoryBatch struct {
	createdAt time.Time
	tasks     []entity.BatchTask
}

// MemoryRegistry keeps batches in a lock-guarded map.
type MemoryRegistry struct {
	mu      sync.RWMutex
	batches map[string]*memoryBatch
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{batches: map[string]*memoryBatch{}}
}

func (r *MemoryRegistry) Create(id string, createdAt time.Time, tasks []entity.BatchTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[id]; ok {
		return fmt.Errorf("%w: %s", ErrBatchExists, id)
	}
	r.batches[id] = &memoryBatch{createdAt: createdAt, tasks: append([]entity.BatchTask(nil), tasks...)}
	return nil
}

func (r *MemoryRegistry) Transition(batchID string, index int, u Update) (entity.BatchTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return entity.BatchTask{}, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if index < 0 || index >= len(b.tasks) {
		return entity.BatchTask{}, fmt.Errorf("task index %d out of range", index)
	}
	t := &b.tasks[index]
	if !t.Status.CanTransition(u.Status) {
		return *t, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, u.Status)
	}
	t.Status = u.Status
	switch u.Status {
	case constants.TaskProcessing:
		t.StartTime = u.At
	default:
		t.EndTime = u.At
		t.Result = u.Result
		t.Error = u.Error
	}
	return *t, nil
}

func (r *MemoryRegistry) CancelPending(batchID string, reason entity.ErrorPayload, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	n := 0
	for i := range b.tasks {
		t := &b.tasks[i]
		if t.Status != constants.TaskPending {
			continue
		}
		e := reason
		t.Status = constants.TaskFailed
		t.Error = &e
		t.EndTime = at
		n++
	}
	return n, nil
}

func (r *MemoryRegistry) Get(batchID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[batchID]
	if !ok {
		return Snapshot{}, false
	}
	return snapshot(batchID, b), true
}

// List returns every batch, oldest first.
func (r *MemoryRegistry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.batches))
	for id, b := range r.batches {
		out = append(out, snapshot(id, b))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryRegistry) Delete(batchIDs ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range batchIDs {
		if _, ok := r.batches[id]; ok {
			delete(r.batches, id)
			n++
		}
	}
	return n
}

func snapshot(id string, b *memoryBatch) Snapshot {
	return Snapshot{ID: id, CreatedAt: b.createdAt, Tasks: append([]entity.BatchTask(nil), b.tasks...)}
}
