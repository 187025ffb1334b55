package worker

import (
	"context"
	"errors"
	"fmt"
	"go-batch-harness/internal/models"
	"log/slog"
	"time"
)

var ErrInvalidArgument = errors.New("invalid argument")

type RunnerService interface {
	Run(ctx context.Context, unit models.WorkUnit, deadline time.Duration) (models.Outcome, error)
}

type Runner struct {
	log *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{log: logger}
}

type unitResult struct {
	result models.Result
	err    error
}

// Run races unit against deadline and converts whatever happens first into an
// Outcome. Only a malformed call is returned as an error.
//
// Cancellation is a request: when the deadline wins, the unit's context is
// cancelled but nothing waits for the unit to return. A unit that ignores its
// context keeps running in the background and its eventual result is dropped.
// Such outcomes carry Orphaned=true.
func (r *Runner) Run(ctx context.Context, unit models.WorkUnit, deadline time.Duration) (models.Outcome, error) {
	if deadline <= 0 {
		return models.Outcome{}, fmt.Errorf("%w: deadline must be positive, got %s", ErrInvalidArgument, deadline)
	}
	if unit.Run == nil {
		return models.Outcome{}, fmt.Errorf("%w: unit %q has no function", ErrInvalidArgument, unit.Name)
	}

	unitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	resultCh := make(chan unitResult, 1) // buffered so an orphan can always deliver and exit
	go func() {
		defer func() {
			if p := recover(); p != nil {
				resultCh <- unitResult{err: fmt.Errorf("%s panicked: %v", unit.Name, p)}
			}
		}()
		res, err := unit.Run(unitCtx, unit.Payload)
		resultCh <- unitResult{result: res, err: err}
	}()

	r.log.Debug("Unit started", "unit", unit.Name, "deadline", deadline)

	select {
	case res := <-resultCh:
		elapsed := time.Since(start)
		if res.err == nil {
			r.log.Info("Unit completed", "unit", unit.Name, "elapsed", elapsed, "isOk", res.result.IsOk)
			return models.Outcome{
				Name:    unit.Name,
				Kind:    models.KindSuccess,
				Result:  res.result,
				Elapsed: elapsed,
			}, nil
		}
		// a unit that honours cancellation returns the deadline error itself
		if errors.Is(res.err, context.DeadlineExceeded) && errors.Is(unitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return r.timeout(unit.Name, deadline, elapsed, false), nil
		}
		r.log.Error("Unit failed", "unit", unit.Name, "elapsed", elapsed, "error", res.err)
		return models.Outcome{
			Name:    unit.Name,
			Kind:    models.KindFailure,
			Err:     res.err.Error(),
			Elapsed: elapsed,
		}, nil

	case <-unitCtx.Done():
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			r.log.Warn("Batch cancelled before unit finished, unit may still be running", "unit", unit.Name, "error", ctx.Err())
			return models.Outcome{
				Name:     unit.Name,
				Kind:     models.KindFailure,
				Err:      ctx.Err().Error(),
				Orphaned: true,
				Elapsed:  elapsed,
			}, nil
		}
		return r.timeout(unit.Name, deadline, elapsed, true), nil
	}
}

func (r *Runner) timeout(name string, deadline, elapsed time.Duration, orphaned bool) models.Outcome {
	if orphaned {
		r.log.Warn("Unit timed out, cancellation requested but the unit may still be running", "unit", name, "deadline", deadline)
	} else {
		r.log.Warn("Unit timed out", "unit", name, "deadline", deadline)
	}
	return models.Outcome{
		Name:     name,
		Kind:     models.KindTimeout,
		Err:      "Timeout",
		Orphaned: orphaned,
		Elapsed:  elapsed,
	}
}
