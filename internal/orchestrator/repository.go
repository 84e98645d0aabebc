package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"asynccalc/internal/models"
)

// Repository is the storage contract of the calculation pipeline.
//
// UpdateStatus must compare update.ExpectedUpdatedAt with the stored stamp and fail with
// models.ErrConflict on mismatch, models.ErrNotFound when the row is gone and
// models.ErrInvalidTransition when the stored status cannot move to update.Status.
type Repository interface {
	List(ctx context.Context, filter models.CalculationFilter, page models.Pagination) ([]models.Calculation, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Calculation, error)
	Contains(ctx context.Context, id uuid.UUID) (bool, error)
	Add(ctx context.Context, calc models.Calculation) (models.Calculation, error)
	UpdateStatus(ctx context.Context, update models.CalculationStatusUpdate) error
	ResetNonFinalToPending(ctx context.Context, maxCreatedAt, newUpdatedAt time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, createdBefore time.Time) (int64, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)
}
