package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Calculation is a single submitted expression and its evaluation outcome.
// Result is set only in StateSuccess, Error only in StateFailed.
type Calculation struct {
	ID         uuid.UUID
	Expression string
	Status     CalculationState
	Result     *float64
	Error      *CalculationErrorDetails
	CreatedBy  User
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCalculation creates a pending calculation stamped with now.
func NewCalculation(expression string, createdBy User, now time.Time) Calculation {
	now = now.UTC()
	return Calculation{
		ID:         uuid.New(),
		Expression: expression,
		Status:     StatePending,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CalculationStatusUpdate is the minimal diff written to storage. ExpectedUpdatedAt is the
// version the writer read; storage rejects the update when it no longer matches.
type CalculationStatusUpdate struct {
	ID                uuid.UUID
	ExpectedUpdatedAt time.Time
	UpdatedAt         time.Time
	Status            CalculationState
	Result            *float64
	Error             *CalculationErrorDetails
}

// Transition moves c to next, returning the update that storage must apply.
// c is modified only when the transition is legal.
func (c *Calculation) Transition(next CalculationState, now time.Time) (CalculationStatusUpdate, error) {
	return c.finish(next, nil, nil, now)
}

// Succeed moves an in-progress calculation to StateSuccess with value.
func (c *Calculation) Succeed(value float64, now time.Time) (CalculationStatusUpdate, error) {
	return c.finish(StateSuccess, &value, nil, now)
}

// Fail moves an in-progress calculation to StateFailed with details.
func (c *Calculation) Fail(details *CalculationErrorDetails, now time.Time) (CalculationStatusUpdate, error) {
	if details == nil {
		details = &CalculationErrorDetails{ErrorCode: InternalErrorCode}
	}
	return c.finish(StateFailed, nil, details, now)
}

func (c *Calculation) finish(next CalculationState, result *float64, details *CalculationErrorDetails, now time.Time) (CalculationStatusUpdate, error) {
	if !c.Status.IsValidTransition(next) {
		return CalculationStatusUpdate{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
	}
	if next == StateSuccess && result == nil {
		return CalculationStatusUpdate{}, fmt.Errorf("%w: success without result", ErrInvalidTransition)
	}
	if next != StateSuccess {
		result = nil
	}
	if next != StateFailed {
		details = nil
	}

	update := CalculationStatusUpdate{
		ID:                c.ID,
		ExpectedUpdatedAt: c.UpdatedAt,
		UpdatedAt:         NextStamp(c.UpdatedAt, now),
		Status:            next,
		Result:            result,
		Error:             details,
	}
	c.Apply(update)
	return update, nil
}

// Apply copies the fields of an update onto c without validation.
func (c *Calculation) Apply(update CalculationStatusUpdate) {
	c.Status = update.Status
	c.Result = update.Result
	c.Error = update.Error
	c.UpdatedAt = update.UpdatedAt
}

// NextStamp returns now in UTC, nudged forward so it is strictly after prev.
// updatedAt doubles as a version, so two writes must never share a stamp.
func NextStamp(prev, now time.Time) time.Time {
	now = now.UTC()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond).UTC()
	}
	return now
}
