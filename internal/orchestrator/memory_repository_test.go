package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"asynccalc/internal/models"
)

// memoryRepository follows the Repository contract closely enough for pipeline tests.
type memoryRepository struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]models.Calculation
	calls []models.CalculationStatusUpdate
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{rows: make(map[uuid.UUID]models.Calculation)}
}

func (m *memoryRepository) List(_ context.Context, filter models.CalculationFilter, page models.Pagination) ([]models.Calculation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Calculation
	for _, calc := range m.rows {
		if filter.CreatedBy != nil && calc.CreatedBy.ID != *filter.CreatedBy {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !calc.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				match = match || calc.Status == s
			}
			if !match {
				continue
			}
		}
		out = append(out, calc)
	}
	sort.Slice(out, func(i, j int) bool {
		if page.NewestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if page.Offset > 0 {
		if page.Offset >= len(out) {
			return nil, nil
		}
		out = out[page.Offset:]
	}
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (m *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (models.Calculation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	calc, ok := m.rows[id]
	if !ok {
		return models.Calculation{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return calc, nil
}

func (m *memoryRepository) Contains(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memoryRepository) Add(_ context.Context, calc models.Calculation) (models.Calculation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[calc.ID]; ok {
		return models.Calculation{}, models.ErrConflict
	}
	m.rows[calc.ID] = calc
	return calc, nil
}

func (m *memoryRepository) UpdateStatus(_ context.Context, update models.CalculationStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	calc, ok := m.rows[update.ID]
	if !ok {
		return models.ErrNotFound
	}
	if !calc.UpdatedAt.Equal(update.ExpectedUpdatedAt) {
		return models.ErrConflict
	}
	if !calc.Status.IsValidTransition(update.Status) {
		return models.ErrInvalidTransition
	}
	calc.Apply(update)
	m.rows[update.ID] = calc
	m.calls = append(m.calls, update)
	return nil
}

func (m *memoryRepository) ResetNonFinalToPending(_ context.Context, maxCreatedAt, newUpdatedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, calc := range m.rows {
		if calc.Status.IsTerminal() || !calc.CreatedAt.Before(maxCreatedAt) {
			continue
		}
		calc.Status = models.StatePending
		calc.UpdatedAt = newUpdatedAt
		m.rows[id] = calc
		n++
	}
	return n, nil
}

func (m *memoryRepository) DeleteOlderThan(_ context.Context, createdBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, calc := range m.rows {
		if calc.CreatedAt.Before(createdBefore) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepository) DeleteByID(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	delete(m.rows, id)
	return ok, nil
}

func (m *memoryRepository) get(id uuid.UUID) (models.Calculation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	calc, ok := m.rows[id]
	return calc, ok
}

func (m *memoryRepository) updates(id uuid.UUID) []models.CalculationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CalculationState
	for _, u := range m.calls {
		if u.ID == id {
			out = append(out, u.Status)
		}
	}
	return out
}
