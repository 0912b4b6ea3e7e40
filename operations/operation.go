package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/reident/reident/host"
)

// RiskLevel grades how much damage a failed or unwanted mutation can do.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel converts s into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch r := RiskLevel(strings.ToLower(s)); r {
	case RiskLow, RiskMedium, RiskHigh:
		return r, nil
	default:
		return "", fmt.Errorf("invalid risk level %q", s)
	}
}

// Definition is the metadata of an operation. The ID is the operation name and must be unique
// within a Registry.
type Definition struct {
	ID          string          `json:"id" yaml:"id" toml:"id"`
	Version     *semver.Version `json:"version" yaml:"version" toml:"version"`
	Description string          `json:"description" yaml:"description" toml:"description"`
}

// VerdictState is the outcome of a precondition.
type VerdictState int

const (
	// VerdictSatisfied means the operation may run.
	VerdictSatisfied VerdictState = iota
	// VerdictUnsatisfied means the operation must be skipped.
	VerdictUnsatisfied
	// VerdictApplied means the host already is in the desired state.
	VerdictApplied
)

// Verdict is returned by a Precondition.
type Verdict struct {
	State  VerdictState
	Reason string
}

// Satisfied lets the operation run.
func Satisfied() Verdict { return Verdict{State: VerdictSatisfied} }

// Unsatisfied skips the operation with reason.
func Unsatisfied(reason string) Verdict { return Verdict{State: VerdictUnsatisfied, Reason: reason} }

// Unsatisfiedf skips the operation with a formatted reason.
func Unsatisfiedf(format string, args ...any) Verdict {
	return Unsatisfied(fmt.Sprintf(format, args...))
}

// ProbeFailed reports that the system state could not be read; the operation is skipped.
func ProbeFailed(err error) Verdict { return Unsatisfied("probe failed: " + err.Error()) }

// AlreadyApplied reports that the host is already in the desired state; the operation is
// recorded as a no-op success without calling its mutation.
func AlreadyApplied(reason string) Verdict { return Verdict{State: VerdictApplied, Reason: reason} }

// OK reports whether the operation may run.
func (v Verdict) OK() bool { return v.State == VerdictSatisfied }

// Precondition is a read-only check over the current system state.
type Precondition func(ctx context.Context, sys host.System) Verdict

// CaptureFunc reads the current value of the identifier an operation changes.
type CaptureFunc func(ctx context.Context, sys host.System) (string, error)

// TargetFunc resolves the value an operation will set. When both the captured prior value and
// the target are known and equal, the mutation is not called.
type TargetFunc func(ctx context.Context, sys host.System) (string, error)

// ApplyFunc performs the mutation. target is the value resolved by the TargetFunc, or empty
// when the operation has none.
type ApplyFunc func(ctx context.Context, sys host.System, target string) (Change, error)

// RestoreFunc sets the identifier back to a previously captured value.
type RestoreFunc func(ctx context.Context, sys host.System, prior string) error

// Change describes what a successful mutation did.
type Change struct {
	Detail   string
	NewValue string
}

// Operation is a single host mutation. Use NewOperation to create one; an Operation is
// immutable once built.
type Operation struct {
	def            Definition
	risk           RiskLevel
	requiresReboot bool
	check          Precondition
	capture        CaptureFunc
	target         TargetFunc
	apply          ApplyFunc
	restore        RestoreFunc
}

// Option configures an Operation in NewOperation.
type Option func(*Operation)

// WithRisk sets the risk level. The default is RiskLow.
func WithRisk(r RiskLevel) Option {
	return func(o *Operation) { o.risk = r }
}

// RequiresReboot marks the change as only taking full effect after a reboot.
func RequiresReboot() Option {
	return func(o *Operation) { o.requiresReboot = true }
}

// WithPrecondition sets the check that gates the mutation.
func WithPrecondition(p Precondition) Option {
	return func(o *Operation) { o.check = p }
}

// WithCapture sets the function that records the prior value.
func WithCapture(c CaptureFunc) Option {
	return func(o *Operation) { o.capture = c }
}

// WithTarget sets the function that resolves the desired value.
func WithTarget(t TargetFunc) Option {
	return func(o *Operation) { o.target = t }
}

// WithRestore sets the function used to roll the identifier back from a backup.
func WithRestore(r RestoreFunc) Option {
	return func(o *Operation) { o.restore = r }
}

// NewOperation creates a new operation.
// Version can be created using semver.MustParse("1.0.0") or semver.New("1.0.0").
func NewOperation(
	id string, version *semver.Version, description string, apply ApplyFunc, opts ...Option,
) *Operation {
	o := &Operation{
		def: Definition{
			ID:          id,
			Version:     version,
			Description: description,
		},
		risk:  RiskLow,
		apply: apply,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// ID returns the operation ID.
func (o *Operation) ID() string {
	return o.def.ID
}

// Version returns the operation semver version in string.
func (o *Operation) Version() string {
	if o.def.Version == nil {
		return ""
	}

	return o.def.Version.String()
}

// Description returns the operation description.
func (o *Operation) Description() string {
	return o.def.Description
}

// Def returns the operation definition.
func (o *Operation) Def() Definition {
	return o.def
}

// Risk returns the risk level.
func (o *Operation) Risk() RiskLevel {
	return o.risk
}

// NeedsReboot reports whether the change needs a reboot to take full effect.
func (o *Operation) NeedsReboot() bool {
	return o.requiresReboot
}

// CanRestore reports whether the operation can be rolled back from a backup record.
func (o *Operation) CanRestore() bool {
	return o.restore != nil
}

// Restore sets the identifier back to prior.
func (o *Operation) Restore(ctx context.Context, sys host.System, prior string) error {
	if o.restore == nil {
		return fmt.Errorf("operation %s: %w", o.def.ID, ErrNotRestorable)
	}

	return o.restore(ctx, sys, prior)
}
