package engine

import "errors"

// Error kinds returned by engine operations. Callers classify with
// errors.Is; wrapped errors carry the detail.
var (
	// ErrInvalidArgument marks malformed input: empty company name,
	// unknown run mode, duplicate task IDs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState marks an illegal task status transition.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrPrecondition marks an operation attempted before its
	// prerequisites exist, such as a frameworks-only run with no
	// Phase 1 context.
	ErrPrecondition = errors.New("precondition failed")

	// ErrProvider marks an external data source or LLM failure.
	ErrProvider = errors.New("provider error")

	// ErrSkillFailure marks a skill that returned an unsuccessful
	// result or panicked.
	ErrSkillFailure = errors.New("skill failure")

	// ErrValidationRejected marks a result the validator refused.
	ErrValidationRejected = errors.New("validation rejected")

	// ErrLoop marks repeated identical actions within one task.
	ErrLoop = errors.New("loop detected")

	// ErrCancelled marks a run stopped by context cancellation.
	ErrCancelled = errors.New("run cancelled")

	// ErrFatal marks an unrecoverable engine error.
	ErrFatal = errors.New("fatal engine error")
)
