package oracle

import (
	"context"
	"errors"
)

// ErrDegraded signals that the oracle ran out of retries or returned
// unusable output. Callers are expected to degrade to their deterministic
// behavior rather than abort the run.
var ErrDegraded = errors.New("oracle unavailable, degrading")

// Client is the judgment oracle used by the refine, triage, planning and
// drafting stages. Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a prompt to the named model and returns the raw
	// completion text.
	Complete(ctx context.Context, model string, prompt string) (string, error)
}
