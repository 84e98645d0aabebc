package orchestrator

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"asynccalc/internal/models"
)

// Registry indexes every calculation that has not reached a terminal state. Pending
// calculations are handed out in registration order.
type Registry struct {
	mu       sync.Mutex
	capacity int
	queue    *list.List
	entries  map[uuid.UUID]*registryEntry
	wake     chan struct{}
}

type registryEntry struct {
	calc   models.Calculation
	elem   *list.Element      // set while pending
	cancel context.CancelFunc // set once dequeued
}

// Job is a dequeued calculation together with its cancellation signal.
type Job struct {
	Calculation models.Calculation
	ctx         context.Context
}

// Context is cancelled when the calculation is cancelled while running.
func (j *Job) Context() context.Context {
	return j.ctx
}

// RegistryStats is a point-in-time view of the registry.
type RegistryStats struct {
	Pending  int
	Running  int
	Capacity int
}

// NewRegistry creates a registry admitting at most capacity calculations at once.
// A capacity of zero or less disables admission control.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		queue:    list.New(),
		entries:  make(map[uuid.UUID]*registryEntry),
		wake:     make(chan struct{}, 1),
	}
}

// Register adds a pending calculation, refusing it with models.ErrTooManyPending once
// the registry holds capacity calculations.
func (r *Registry) Register(calc models.Calculation) error {
	return r.add(calc, true)
}

// Restore registers a recovered calculation regardless of capacity.
func (r *Registry) Restore(calc models.Calculation) error {
	return r.add(calc, false)
}

func (r *Registry) add(calc models.Calculation, enforceCapacity bool) error {
	if calc.Status != models.StatePending {
		return fmt.Errorf("%w: cannot register %s calculation", models.ErrInvalidTransition, calc.Status)
	}

	r.mu.Lock()
	if _, exists := r.entries[calc.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: calculation %s already registered", models.ErrConflict, calc.ID)
	}
	if enforceCapacity && r.capacity > 0 && len(r.entries) >= r.capacity {
		r.mu.Unlock()
		return fmt.Errorf("%w: limit is %d", models.ErrTooManyPending, r.capacity)
	}
	e := &registryEntry{calc: calc}
	e.elem = r.queue.PushBack(e)
	r.entries[calc.ID] = e
	r.mu.Unlock()

	r.signal()
	return nil
}

// TryDequeueNext removes the oldest pending calculation and marks it running.
func (r *Registry) TryDequeueNext() (*Job, bool) {
	r.mu.Lock()
	front := r.queue.Front()
	if front == nil {
		r.mu.Unlock()
		return nil, false
	}
	e := r.queue.Remove(front).(*registryEntry)
	e.elem = nil

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	job := &Job{Calculation: e.calc, ctx: ctx}
	e.calc.Status = models.StateInProgress
	more := r.queue.Len() > 0
	r.mu.Unlock()

	// pass the wake-up on so another parked worker picks the rest
	if more {
		r.signal()
	}
	return job, true
}

// Dequeue blocks until a pending calculation is available or ctx is done.
func (r *Registry) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if job, ok := r.TryDequeueNext(); ok {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.wake:
		}
	}
}

// Cancel cancels a registered calculation. A pending one is removed and returned with
// StatePending; a running one gets its job context cancelled, stays registered until
// Complete and is returned with StateInProgress. ok is false when id is not registered.
func (r *Registry) Cancel(id uuid.UUID) (models.Calculation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return models.Calculation{}, false
	}
	if e.elem != nil {
		r.queue.Remove(e.elem)
		delete(r.entries, id)
		return e.calc, true
	}
	e.cancel()
	return e.calc, true
}

// Complete drops a calculation whose terminal status has been produced. It reports
// whether anything was removed, so repeated calls are harmless.
func (r *Registry) Complete(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	if e.elem != nil {
		r.queue.Remove(e.elem)
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(r.entries, id)
	return true
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of registered calculations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistryStats{
		Pending:  r.queue.Len(),
		Running:  len(r.entries) - r.queue.Len(),
		Capacity: r.capacity,
	}
}

func (r *Registry) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
