package operations

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the fate of one operation in a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Details used by the sequencer for results it produces on its own.
const (
	DetailNoop      = "no-op, value already satisfied"
	DetailAborted   = "aborted"
	DetailCancelled = "cancelled"
	DetailTimedOut  = "timed out"
	// DetailOutstanding skips the operations after a mutation that would not stop.
	DetailOutstanding = "previous mutation still running"
)

// ExecutionResult is the outcome of a single operation. It is created once per operation per
// run and never modified afterwards.
type ExecutionResult struct {
	ID             string        `json:"id" yaml:"id" toml:"id"`
	OperationID    string        `json:"operation" yaml:"operation" toml:"operation"`
	Version        string        `json:"version" yaml:"version" toml:"version"`
	Status         Status        `json:"status" yaml:"status" toml:"status"`
	Detail         string        `json:"detail" yaml:"detail" toml:"detail"`
	PriorValue     string        `json:"prior_value,omitempty" yaml:"prior_value,omitempty" toml:"prior_value,omitempty"`
	NewValue       string        `json:"new_value,omitempty" yaml:"new_value,omitempty" toml:"new_value,omitempty"`
	RequiresReboot bool          `json:"requires_reboot" yaml:"requires_reboot" toml:"requires_reboot"`
	StartedAt      time.Time     `json:"started_at" yaml:"started_at" toml:"started_at"`
	Duration       time.Duration `json:"duration" yaml:"duration" toml:"duration"`
}

func newResult(op *Operation, status Status, detail string, started time.Time) ExecutionResult {
	return ExecutionResult{
		ID:          uuid.New().String(),
		OperationID: op.ID(),
		Version:     op.Version(),
		Status:      status,
		Detail:      detail,
		StartedAt:   started,
		Duration:    time.Since(started),
	}
}

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	// RunSucceeded means no operation failed.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed means at least one operation failed and the run continued.
	RunFailed RunStatus = "failed"
	// RunAborted means a failure stopped the run under AbortOnFailure.
	RunAborted RunStatus = "aborted"
	// RunCancelled means the caller cancelled the run between operations.
	RunCancelled RunStatus = "cancelled"
)

// RunReport is the ordered record of one sequencer run.
type RunReport struct {
	RunID      string            `json:"run_id" yaml:"run_id" toml:"run_id"`
	Mode       Mode              `json:"mode" yaml:"mode" toml:"mode"`
	Status     RunStatus         `json:"status" yaml:"status" toml:"status"`
	StartedAt  time.Time         `json:"started_at" yaml:"started_at" toml:"started_at"`
	FinishedAt time.Time         `json:"finished_at" yaml:"finished_at" toml:"finished_at"`
	Results    []ExecutionResult `json:"results" yaml:"results" toml:"results"`
}

// Statuses returns the status of each result, in order.
func (r RunReport) Statuses() []Status {
	out := make([]Status, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Status
	}

	return out
}

// Result returns the result recorded for operation id.
func (r RunReport) Result(id string) (ExecutionResult, bool) {
	i := slices.IndexFunc(r.Results, func(res ExecutionResult) bool { return res.OperationID == id })
	if i < 0 {
		return ExecutionResult{}, false
	}

	return r.Results[i], true
}

// Reporter receives results as the sequencer produces them. Reporters observe a run; they
// cannot influence it, and an error returned by AddResult is only logged.
type Reporter interface {
	AddResult(result ExecutionResult) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(result ExecutionResult) error

// AddResult calls f.
func (f ReporterFunc) AddResult(result ExecutionResult) error { return f(result) }

// MemoryReporter stores results in memory.
// This is thread-safe and can be read while a run is in progress.
type MemoryReporter struct {
	results []ExecutionResult
	mu      sync.RWMutex
}

// NewMemoryReporter creates a new MemoryReporter.
func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

// AddResult appends a result.
func (m *MemoryReporter) AddResult(result ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, result)

	return nil
}

// Results returns a copy of every result received so far.
func (m *MemoryReporter) Results() []ExecutionResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.results)
}

// GetResult returns the result with the given result ID.
func (m *MemoryReporter) GetResult(id string) (ExecutionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.results {
		if r.ID == id {
			return r, nil
		}
	}

	return ExecutionResult{}, fmt.Errorf("result %s not found", id)
}
