package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/reident/reident/host"
	"github.com/reident/reident/pkg/logger"
)

const (
	// DefaultTimeout bounds a single mutation.
	DefaultTimeout = 30 * time.Second
	// DefaultGracePeriod is how long a timed out mutation may take to notice its cancelled
	// context.
	DefaultGracePeriod = 5 * time.Second
)

// Mode decides what happens after an operation fails.
type Mode string

const (
	// AbortOnFailure stops at the first failure and skips the rest.
	AbortOnFailure Mode = "abort"
	// ContinueOnFailure runs every operation regardless of earlier failures.
	ContinueOnFailure Mode = "continue"
)

// ParseMode converts "abort" or "continue" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case AbortOnFailure, ContinueOnFailure:
		return m, nil
	case "":
		return ContinueOnFailure, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be %q or %q", s, AbortOnFailure, ContinueOnFailure)
	}
}

// BackupHook receives the prior value of an identifier right before it is mutated. A failing
// hook fails the operation without mutating.
type BackupHook interface {
	Record(ctx context.Context, def Definition, prior string) error
}

// Sequencer runs operations against a host.System. Use NewSequencer to create one.
type Sequencer struct {
	lggr      logger.Logger
	sys       host.System
	timeout   time.Duration
	grace     time.Duration
	lockPath  string
	envCheck  EnvironmentCheck
	backup    BackupHook
	reporters []Reporter
	running   atomic.Bool
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithTimeout sets the per-operation mutation timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) SequencerOption {
	return func(s *Sequencer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithGracePeriod sets how long a mutation that hit its timeout may take to return before the
// rest of the run is skipped. Negative values keep the default.
func WithGracePeriod(d time.Duration) SequencerOption {
	return func(s *Sequencer) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithLock sets the lock file used to exclude concurrent runs. An empty path disables the
// file lock; runs on the same Sequencer are still exclusive.
func WithLock(path string) SequencerOption {
	return func(s *Sequencer) { s.lockPath = path }
}

// WithEnvironmentCheck sets the check run once before any operation.
func WithEnvironmentCheck(c EnvironmentCheck) SequencerOption {
	return func(s *Sequencer) { s.envCheck = c }
}

// WithBackup sets the hook that records prior values.
func WithBackup(b BackupHook) SequencerOption {
	return func(s *Sequencer) { s.backup = b }
}

// WithReporter adds a Reporter that receives every result as it is produced.
func WithReporter(r Reporter) SequencerOption {
	return func(s *Sequencer) { s.reporters = append(s.reporters, r) }
}

// NewSequencer creates a Sequencer using the default timeout and lock path.
func NewSequencer(lggr logger.Logger, sys host.System, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		lggr:     lggr,
		sys:      sys,
		timeout:  DefaultTimeout,
		grace:    DefaultGracePeriod,
		lockPath: DefaultLockPath,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run executes ops in order and returns one result per operation.
//
// Run returns an error, and no report, only when the run cannot start: the selection contains
// a duplicate ID, the environment check fails (*PrivilegeError), or another run is in progress
// (ErrRunInProgress). The environment check runs before the lock is taken. Everything that goes wrong inside an operation is recorded in its
// result instead.
//
// Cancelling ctx stops the run between operations; the remaining ones are recorded as
// skipped("cancelled"). A mutation that has started is allowed to finish. A mutation that is
// still running after its timeout and grace period leaves the remaining operations
// skipped(DetailOutstanding), and Run does not return until it does.
func (s *Sequencer) Run(ctx context.Context, ops []*Operation, mode Mode) (RunReport, error) {
	if err := validateSelection(ops); err != nil {
		return RunReport{}, err
	}
	if mode == "" {
		mode = ContinueOnFailure
	}

	if !s.running.CompareAndSwap(false, true) {
		return RunReport{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	if s.envCheck != nil {
		if err := s.envCheck(ctx, s.sys); err != nil {
			var perr *PrivilegeError
			if !errors.As(err, &perr) {
				perr = &PrivilegeError{Reason: "host is not eligible", Err: err}
			}
			s.lggr.Errorw("Environment check failed, no operation was run", "error", perr)

			return RunReport{}, perr
		}
	}

	lock, err := AcquireLock(s.lockPath)
	if err != nil {
		return RunReport{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.lggr.Warnw("Failed to release run lock", "path", s.lockPath, "error", err)
		}
	}()

	// A mutation that outlived its timeout and grace period keeps the lock until it returns.
	var outstanding <-chan struct{}
	defer func() {
		if outstanding != nil {
			s.lggr.Warnw("Waiting for a timed out mutation to return before releasing the lock")
			<-outstanding
		}
	}()

	report := RunReport{
		RunID:     uuid.New().String(),
		Mode:      mode,
		StartedAt: time.Now(),
		Results:   make([]ExecutionResult, 0, len(ops)),
	}
	s.lggr.Infow("Starting run", "run_id", report.RunID, "mode", mode, "operations", len(ops))

	var aborted, cancelled bool
	for _, op := range ops {
		var res ExecutionResult
		switch {
		case outstanding != nil:
			res = newResult(op, StatusSkipped, DetailOutstanding, time.Now())
		case cancelled || ctx.Err() != nil:
			cancelled = true
			res = newResult(op, StatusSkipped, DetailCancelled, time.Now())
		case aborted:
			res = newResult(op, StatusSkipped, DetailAborted, time.Now())
		default:
			res, outstanding = s.execute(ctx, op)
			if outstanding != nil {
				s.lggr.Errorw("Mutation still running after timeout, skipping the remaining operations",
					"id", op.ID(), "grace_period", s.grace)
			}
			if res.Status == StatusFailed && mode == AbortOnFailure {
				aborted = true
				s.lggr.Warnw("Aborting run after failure", "id", op.ID())
			}
		}

		report.Results = append(report.Results, res)
		s.emit(res)
	}

	report.FinishedAt = time.Now()
	switch {
	case cancelled:
		report.Status = RunCancelled
	case aborted:
		report.Status = RunAborted
	case Summarize(report).Failed > 0:
		report.Status = RunFailed
	default:
		report.Status = RunSucceeded
	}
	s.lggr.Infow("Run finished", "run_id", report.RunID, "status", report.Status)

	return report, nil
}

// execute walks one operation through precondition, capture, target, backup and apply. The
// returned channel is non-nil when the mutation is still running; it closes once it returns.
func (s *Sequencer) execute(ctx context.Context, op *Operation) (ExecutionResult, <-chan struct{}) {
	started := time.Now()
	s.lggr.Infow("Executing operation",
		"id", op.ID(), "version", op.Version(), "description", op.Description(), "risk", op.Risk())

	verdict := Check(ctx, op, s.sys)
	switch verdict.State {
	case VerdictUnsatisfied:
		s.lggr.Infow("Precondition not satisfied, skipping", "id", op.ID(), "reason", verdict.Reason)
		return newResult(op, StatusSkipped, verdict.Reason, started), nil
	case VerdictApplied:
		s.lggr.Infow("Already applied", "id", op.ID(), "reason", verdict.Reason)
		return newResult(op, StatusSuccess, DetailNoop, started), nil
	}

	var prior string
	if op.capture != nil {
		var err error
		if prior, err = op.capture(ctx, s.sys); err != nil {
			return newResult(op, StatusFailed, "capture prior value: "+err.Error(), started), nil
		}
	}

	var target string
	if op.target != nil {
		var err error
		if target, err = op.target(ctx, s.sys); err != nil {
			res := newResult(op, StatusFailed, "resolve target value: "+err.Error(), started)
			res.PriorValue = prior

			return res, nil
		}
		if op.capture != nil && prior == target {
			s.lggr.Infow("Value already satisfied", "id", op.ID(), "value", prior)
			res := newResult(op, StatusSuccess, DetailNoop, started)
			res.PriorValue = prior
			res.NewValue = target

			return res, nil
		}
	}

	if s.backup != nil && op.capture != nil {
		if err := s.backup.Record(ctx, op.Def(), prior); err != nil {
			res := newResult(op, StatusFailed, "backup prior value: "+err.Error(), started)
			res.PriorValue = prior

			return res, nil
		}
	}

	change, outstanding, err := s.apply(ctx, op, target)
	if err != nil {
		merr := NewMutationError(op.ID(), err)
		s.lggr.Errorw("Operation failed", "id", op.ID(), "error", merr.Err, "output", merr.Output)

		detail := err.Error()
		if errors.Is(err, ErrTimeout) {
			detail = DetailTimedOut
		}
		res := newResult(op, StatusFailed, detail, started)
		res.PriorValue = prior

		return res, outstanding
	}

	detail := change.Detail
	if detail == "" {
		detail = "applied"
	}
	if op.requiresReboot {
		detail += " (requires_reboot=true)"
	}
	res := newResult(op, StatusSuccess, detail, started)
	res.PriorValue = prior
	res.NewValue = change.NewValue
	if res.NewValue == "" {
		res.NewValue = target
	}
	res.RequiresReboot = op.requiresReboot
	s.lggr.Infow("Operation applied", "id", op.ID(), "detail", detail, "duration", res.Duration)

	return res, nil
}

// apply runs the mutation under the per-operation timeout. The mutation context ignores the
// caller's cancellation so an in-flight change is never interrupted by the user; only the
// timeout ends it. When the timeout fires, apply gives the mutation the grace period to return
// and then reports ErrTimeout. If it is still running by then, the returned channel closes when
// it finally returns.
func (s *Sequencer) apply(ctx context.Context, op *Operation, target string) (Change, <-chan struct{}, error) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)

	type outcome struct {
		change Change
		err    error
	}
	done := make(chan outcome, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		change, err := op.apply(mctx, s.sys, target)
		done <- outcome{change: change, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-mctx.Done():
		grace := time.NewTimer(s.grace)
		defer grace.Stop()

		select {
		case out = <-done:
		case <-grace.C:
			return Change{}, finished, ErrTimeout
		}
	}

	if out.err != nil && errors.Is(mctx.Err(), context.DeadlineExceeded) {
		return Change{}, nil, ErrTimeout
	}

	return out.change, nil, out.err
}

func (s *Sequencer) emit(res ExecutionResult) {
	for _, r := range s.reporters {
		if err := r.AddResult(res); err != nil {
			s.lggr.Warnw("Reporter rejected result", "id", res.OperationID, "error", err)
		}
	}
}

func validateSelection(ops []*Operation) error {
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if op == nil {
			return errors.New("selection contains a nil operation")
		}
		if seen[op.ID()] {
			return fmt.Errorf("select %s: %w", op.ID(), ErrDuplicateName)
		}
		seen[op.ID()] = true
	}

	return nil
}
