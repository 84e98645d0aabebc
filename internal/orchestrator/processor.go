package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"asynccalc/internal/calculator"
	"asynccalc/internal/models"
)

// ProcessorConfig tunes the processor.
type ProcessorConfig struct {
	Workers    int
	Validation calculator.NumberValidation
}

// Processor evaluates registered calculations on a pool of workers and reports every
// status change to its sink.
type Processor struct {
	registry   *Registry
	sink       StatusSink
	calc       *calculator.Calculator
	workers    int
	validation calculator.NumberValidation
	log        zerolog.Logger
	now        func() time.Time
}

func NewProcessor(registry *Registry, sink StatusSink, cfg ProcessorConfig, logger zerolog.Logger) *Processor {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		registry:   registry,
		sink:       sink,
		calc:       calculator.NewCalculator(),
		workers:    workers,
		validation: cfg.Validation,
		log:        logger.With().Str("component", "processor").Logger(),
		now:        time.Now,
	}
}

// Run blocks until ctx is done or a worker fails. A worker failure means an invariant is
// broken; it stops the other workers and is returned so the host can exit.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Info().Int("workers", p.workers).Str("validation", p.validation.String()).Msg("processor started")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i
		g.Go(func() error {
			return p.work(ctx, workerID)
		})
	}
	err := g.Wait()
	if err != nil {
		p.log.Error().Err(err).Msg("processor stopped")
		return err
	}
	p.log.Info().Msg("processor stopped")
	return nil
}

func (p *Processor) work(ctx context.Context, workerID int) (err error) {
	log := p.log.With().Int("worker", workerID).Logger()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v\n%s", workerID, r, debug.Stack())
		}
	}()

	for {
		job, err := p.registry.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker %d: dequeue: %w", workerID, err)
		}
		if err := p.process(ctx, job, log); err != nil {
			return fmt.Errorf("worker %d: calculation %s: %w", workerID, job.Calculation.ID, err)
		}
	}
}

// process drives one calculation to a terminal state. A calculation whose start could not
// be recorded is not evaluated; it is rescheduled when storage still holds it as pending.
func (p *Processor) process(ctx context.Context, job *Job, log zerolog.Logger) error {
	log = log.With().Str("calculation_id", job.Calculation.ID.String()).Logger()
	// writes outlive shutdown so a finished evaluation is never lost
	writeCtx := context.WithoutCancel(ctx)

	started, err := p.evaluate(writeCtx, job, log)
	if err != nil || started {
		return err
	}
	return p.reschedule(writeCtx, job.Calculation.ID, log)
}

// evaluate reports false when the calculation never started because its InProgress
// update was not applied. The registry entry is released before it returns.
func (p *Processor) evaluate(ctx context.Context, job *Job, log zerolog.Logger) (bool, error) {
	calc := job.Calculation
	defer p.registry.Complete(calc.ID)

	if job.Context().Err() != nil {
		update, err := calc.Transition(models.StateCancelled, p.now())
		if err != nil {
			return true, err
		}
		_, err = p.persist(ctx, update, log)
		return true, err
	}

	update, err := calc.Transition(models.StateInProgress, p.now())
	if err != nil {
		return true, err
	}
	applied, err := p.persist(ctx, update, log)
	if err != nil {
		return true, err
	}
	if !applied {
		return false, nil
	}

	started := time.Now()
	value, details := p.calc.Evaluate(job.Context(), calc.Expression, p.validation)

	switch {
	case job.Context().Err() != nil:
		update, err = calc.Transition(models.StateCancelled, p.now())
	case details != nil:
		update, err = calc.Fail(details, p.now())
	default:
		update, err = calc.Succeed(value, p.now())
	}
	if err != nil {
		return true, err
	}

	log.Debug().
		Str("status", string(update.Status)).
		Dur("elapsed", time.Since(started)).
		Msg("calculation evaluated")

	_, err = p.persist(ctx, update, log)
	return true, err
}

// reschedule puts a calculation back into the registry with its stored version when it
// is still pending. Anything else means another writer already moved it on.
func (p *Processor) reschedule(ctx context.Context, id uuid.UUID, log zerolog.Logger) error {
	stored, err := p.sink.Lookup(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		log.Debug().Msg("calculation no longer stored, not rescheduled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if stored.Status != models.StatePending {
		log.Info().Str("status", string(stored.Status)).Msg("calculation moved on concurrently, not rescheduled")
		return nil
	}
	if err := p.registry.Restore(stored); err != nil && !errors.Is(err, models.ErrConflict) {
		return fmt.Errorf("reschedule: %w", err)
	}
	log.Info().Msg("calculation rescheduled after concurrent update")
	return nil
}

// persist reports whether the update was applied. Losing an optimistic concurrency race
// is expected and only logged; any other failure is returned.
func (p *Processor) persist(ctx context.Context, update models.CalculationStatusUpdate, log zerolog.Logger) (bool, error) {
	applied, err := p.sink.UpdateStatus(ctx, update)
	switch {
	case err == nil:
		return applied, nil
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrConflict):
		log.Warn().Err(err).Str("status", string(update.Status)).Msg("status update dropped")
		return false, nil
	default:
		return false, fmt.Errorf("persist %s: %w", update.Status, err)
	}
}
