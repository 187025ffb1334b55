package worker

import (
	"context"
	"errors"
	"fmt"
	"go-batch-harness/internal/metrics"
	"go-batch-harness/internal/models"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	ErrBatchInFlight      = errors.New("a batch is already executing")
	ErrBatchOrchestration = errors.New("batch orchestration failed")
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type BatchExecutorService interface {
	ExecuteAll(ctx context.Context, units []models.WorkUnit, deadline time.Duration) (models.BatchReport, error)
	Executing() bool
	State() State
}

type BatchExecutor struct {
	runner      RunnerService
	log         *slog.Logger
	metrics     *metrics.Metrics
	onSuccess   func(models.Outcome)
	maxInFlight int64
	state       atomic.Int32
}

type Option func(*BatchExecutor)

// WithMaxInFlight bounds how many units run at once. Zero keeps the default
// of launching the whole batch at once.
func WithMaxInFlight(n int) Option {
	return func(e *BatchExecutor) { e.maxInFlight = int64(n) }
}

// WithOnSuccess registers a callback receiving each successful outcome as it
// resolves. Calls are serialized.
func WithOnSuccess(fn func(models.Outcome)) Option {
	return func(e *BatchExecutor) { e.onSuccess = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *BatchExecutor) { e.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *BatchExecutor) { e.log = logger }
}

func NewBatchExecutor(runner RunnerService, opts ...Option) *BatchExecutor {
	e := &BatchExecutor{
		runner: runner,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Executing reports whether a batch is in flight.
func (e *BatchExecutor) Executing() bool {
	return e.State() == StateRunning
}

func (e *BatchExecutor) State() State {
	return State(e.state.Load())
}

// batch collects the outcomes of one ExecuteAll call.
type batch struct {
	mu        sync.Mutex
	report    models.BatchReport
	onSuccess func(models.Outcome)
}

func (b *batch) record(o models.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.Kind == models.KindSuccess {
		b.report.Successes = append(b.report.Successes, o)
		if b.onSuccess != nil {
			b.onSuccess(o)
		}
		return
	}
	b.report.Incomplete = append(b.report.Incomplete, o)
}

func (b *batch) snapshot() models.BatchReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.report
	r.Finished = time.Now()
	return r
}

// ExecuteAll launches every unit concurrently, each bounded by deadline, and
// waits until all of them have an outcome. Unit failures and timeouts end up
// in the report; only a malformed call or a failure of the fan-out itself is
// returned as an error, in which case the partial report is returned too.
//
// Timed-out units are not waited for and may still be running when ExecuteAll
// returns.
func (e *BatchExecutor) ExecuteAll(ctx context.Context, units []models.WorkUnit, deadline time.Duration) (models.BatchReport, error) {
	if err := validateBatch(units, deadline); err != nil {
		return models.BatchReport{}, err
	}
	if !e.begin() {
		return models.BatchReport{}, ErrBatchInFlight
	}
	defer e.settle()

	b := &batch{
		report: models.BatchReport{
			BatchID: uuid.NewString(),
			Started: time.Now(),
		},
		onSuccess: e.onSuccess,
	}
	log := e.log.With("batchID", b.report.BatchID)
	log.Info("============== Executing batch ==============", "unitCount", len(units), "deadline", deadline)

	err := e.fanOut(ctx, b, units, deadline)
	report := b.snapshot()
	e.metrics.BatchSettled(err)
	if err != nil {
		log.Error("Batch orchestration failed", "error", err)
	}
	e.logReport(log, report)
	return report, err
}

func (e *BatchExecutor) begin() bool {
	for {
		cur := e.state.Load()
		if State(cur) == StateRunning {
			return false
		}
		if e.state.CompareAndSwap(cur, int32(StateRunning)) {
			e.metrics.SetExecuting(true)
			return true
		}
	}
}

func (e *BatchExecutor) settle() {
	e.state.Store(int32(StateSettled))
	e.metrics.SetExecuting(false)
}

func (e *BatchExecutor) fanOut(ctx context.Context, b *batch, units []models.WorkUnit, deadline time.Duration) (err error) {
	g, gctx := errgroup.WithContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			_ = g.Wait()
			err = fmt.Errorf("%w: %v", ErrBatchOrchestration, p)
		}
	}()

	var sem *semaphore.Weighted
	if e.maxInFlight > 0 {
		sem = semaphore.NewWeighted(e.maxInFlight)
	}

	for _, unit := range units {
		if sem != nil {
			if err := sem.Acquire(gctx, 1); err != nil {
				werr := g.Wait()
				return fmt.Errorf("%w: admitting %q: %w", ErrBatchOrchestration, unit.Name, errors.Join(err, werr))
			}
		}
		g.Go(func() (err error) {
			if sem != nil {
				defer sem.Release(1)
			}
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("recording %q: %v", unit.Name, p)
				}
			}()
			outcome, err := e.runner.Run(gctx, unit, deadline)
			if err != nil {
				return fmt.Errorf("running %q: %w", unit.Name, err)
			}
			e.metrics.ObserveOutcome(outcome)
			b.record(outcome)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrBatchOrchestration, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrBatchOrchestration, err)
	}
	return nil
}

func (e *BatchExecutor) logReport(log *slog.Logger, report models.BatchReport) {
	counts := report.Counts()
	log.Info("Batch settled",
		"success", counts[models.KindSuccess],
		"timeout", counts[models.KindTimeout],
		"failure", counts[models.KindFailure],
		"elapsed", report.Finished.Sub(report.Started),
	)
	if len(report.Incomplete) == 0 {
		return
	}
	log.Warn("INCOMPLETE TASKS", "count", len(report.Incomplete))
	for _, o := range report.Incomplete {
		log.Warn("Incomplete task", "reason", o.Kind.String(), "unit", o.Name, "error", o.Err, "possiblyRunning", o.Orphaned)
	}
}

func validateBatch(units []models.WorkUnit, deadline time.Duration) error {
	if len(units) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidArgument)
	}
	if deadline <= 0 {
		return fmt.Errorf("%w: deadline must be positive, got %s", ErrInvalidArgument, deadline)
	}
	seen := make(map[string]struct{}, len(units))
	for i, unit := range units {
		if unit.Name == "" {
			return fmt.Errorf("%w: unit %d has no name", ErrInvalidArgument, i)
		}
		if unit.Run == nil {
			return fmt.Errorf("%w: unit %q has no function", ErrInvalidArgument, unit.Name)
		}
		if _, dup := seen[unit.Name]; dup {
			return fmt.Errorf("%w: duplicate unit name %q", ErrInvalidArgument, unit.Name)
		}
		seen[unit.Name] = struct{}{}
	}
	return nil
}
