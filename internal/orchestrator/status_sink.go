package orchestrator

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asynccalc/internal/models"
)

// StatusSink receives the status changes produced by the processor.
//
// UpdateStatus reports whether the update reached storage. A calculation that is no
// longer stored yields false with a nil error. Lookup re-reads the stored state of a
// calculation whose update was not applied.
type StatusSink interface {
	UpdateStatus(ctx context.Context, update models.CalculationStatusUpdate) (bool, error)
	Lookup(ctx context.Context, id uuid.UUID) (models.Calculation, error)
}

// RepositorySink writes status changes to a Repository. A calculation deleted by
// retention cleanup while it was being processed is not an error.
type RepositorySink struct {
	repo Repository
	log  zerolog.Logger
}

func NewRepositorySink(repo Repository, logger zerolog.Logger) *RepositorySink {
	return &RepositorySink{
		repo: repo,
		log:  logger.With().Str("component", "status_sink").Logger(),
	}
}

func (s *RepositorySink) UpdateStatus(ctx context.Context, update models.CalculationStatusUpdate) (bool, error) {
	err := s.repo.UpdateStatus(ctx, update)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		s.log.Warn().
			Str("calculation_id", update.ID.String()).
			Str("status", string(update.Status)).
			Msg("calculation no longer stored, status update dropped")
		return false, nil
	default:
		return false, err
	}
}

func (s *RepositorySink) Lookup(ctx context.Context, id uuid.UUID) (models.Calculation, error) {
	return s.repo.GetByID(ctx, id)
}
