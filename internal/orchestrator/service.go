package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asynccalc/internal/models"
)

// Service is the calculation use-case API consumed by the HTTP and gRPC layers.
type Service struct {
	repo     Repository
	registry *Registry
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, registry *Registry, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		log:      logger.With().Str("component", "service").Logger(),
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, filter models.CalculationFilter, page models.Pagination) ([]models.Calculation, error) {
	return s.repo.List(ctx, filter, page)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (models.Calculation, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new pending calculation and schedules it. When the registry is full the
// stored row is removed again and models.ErrTooManyPending is returned.
func (s *Service) Create(ctx context.Context, expression string, user models.User) (models.Calculation, error) {
	calc, err := s.repo.Add(ctx, models.NewCalculation(expression, user, s.now()))
	if err != nil {
		return models.Calculation{}, fmt.Errorf("store calculation: %w", err)
	}

	if err := s.registry.Register(calc); err != nil {
		if _, delErr := s.repo.DeleteByID(context.WithoutCancel(ctx), calc.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("calculation_id", calc.ID.String()).Msg("failed to remove rejected calculation")
		}
		return models.Calculation{}, err
	}

	s.log.Info().
		Str("calculation_id", calc.ID.String()).
		Int("user_id", user.ID).
		Msg("calculation accepted")
	return calc, nil
}

// Cancel cancels a calculation owned by requestedBy. A pending calculation is cancelled
// immediately; for a running one the returned update describes the cancellation that the
// processor will persist when the evaluation returns.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, requestedBy models.User) (models.CalculationStatusUpdate, error) {
	calc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.CalculationStatusUpdate{}, err
	}
	if calc.CreatedBy.ID != requestedBy.ID {
		return models.CalculationStatusUpdate{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if calc.Status.IsTerminal() {
		return models.CalculationStatusUpdate{}, fmt.Errorf("%w: calculation is already %s", models.ErrConflict, calc.Status)
	}

	log := s.log.With().Str("calculation_id", id.String()).Int("user_id", requestedBy.ID).Logger()

	registered, ok := s.registry.Cancel(id)
	if ok && registered.Status == models.StateInProgress {
		log.Info().Msg("cancellation signalled to running calculation")
		return models.CalculationStatusUpdate{
			ID:                id,
			ExpectedUpdatedAt: calc.UpdatedAt,
			UpdatedAt:         models.NextStamp(calc.UpdatedAt, s.now()),
			Status:            models.StateCancelled,
		}, nil
	}
	if ok {
		calc = registered
	}

	update, err := calc.Transition(models.StateCancelled, s.now())
	if err != nil {
		return models.CalculationStatusUpdate{}, err
	}
	// the calculation has already left the registry; the write must not be abandoned halfway
	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), update); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTransition):
			return models.CalculationStatusUpdate{}, fmt.Errorf("%w: %v", models.ErrConflict, err)
		case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrNotFound):
			return models.CalculationStatusUpdate{}, err
		}
		if ok {
			// still pending in storage, so hand it back to the processor
			if restoreErr := s.registry.Restore(calc); restoreErr != nil {
				log.Error().Err(restoreErr).Msg("failed to reschedule calculation after failed cancel")
			}
		}
		return models.CalculationStatusUpdate{}, err
	}

	log.Info().Msg("calculation cancelled")
	return update, nil
}

// Stats exposes the registry occupancy.
func (s *Service) Stats() RegistryStats {
	return s.registry.Stats()
}
