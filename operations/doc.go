/*
Package operations sequences host-identity mutations and reports the fate of each one.

# Core Components

Operation:
  - A named, versioned unit of host mutation built with NewOperation
  - Holds bound references to its precondition, prior-value capture, target resolution,
    mutation and optional restore functions; registering never calls them
  - Carries a risk level and whether a reboot is needed for the change to take effect

Registry:
  - Stores operations in registration order and rejects duplicate IDs
  - All yields a restartable sequence; Select builds an include/exclude subset

Sequencer:
  - Runs operations one at a time, in order, against an injected host.System
  - Each operation walks precondition → capture → target → backup → apply → record
  - AbortOnFailure marks everything after the first failure as skipped("aborted");
    ContinueOnFailure keeps going
  - Enforces a per-operation timeout, honours cancellation between operations only,
    and refuses to start while another run holds the lock file
  - Never retries a failed mutation

Reporter:
  - Reporters receive every ExecutionResult as it is produced
  - Summarize reduces a RunReport to success/failure/skip counts

# Basic Usage

	op := operations.NewOperation("hostname", semver.MustParse("1.0.0"), "Set a new hostname",
		applyHostname,
		operations.WithPrecondition(requireHostnamectl),
		operations.WithCapture(currentHostname),
	)

	reg, err := operations.NewRegistry(op)
	seq := operations.NewSequencer(lggr, host.NewLocal(), operations.WithTimeout(30*time.Second))
	report, err := seq.Run(ctx, slices.Collect(reg.All()), operations.ContinueOnFailure)
	summary := operations.Summarize(report)
*/
package operations
