package verify

import "errors"

// The closed set of run-fatal error reasons surfaced by Verify. Callers
// map these to transport errors; nothing else escapes the orchestrator.
var (
	// ErrInvalidInput rejects empty claim text before any external call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoEvidence is returned when evidence retrieval exhausted its
	// retries with nothing to show and degraded verdicts are disabled.
	ErrNoEvidence = errors.New("no evidence")

	// ErrRunTimeout is returned when a run exceeds its wall-clock budget.
	// Fatal to the run, not to the process.
	ErrRunTimeout = errors.New("run timeout")

	// ErrAgentMalformed is returned when every configured role degraded
	// to a fallback finding and degraded verdicts are disabled.
	ErrAgentMalformed = errors.New("agent output malformed")
)
