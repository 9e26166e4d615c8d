package checker

import (
	"errors"
	"fmt"
)

// Error taxonomy for check cycles. The orchestrator treats any of these as
// fail-closed for the affected monitor: no notification is sent and the
// stored state is left untouched, so the next successful cycle still observes
// the unprocessed change.
var (
	// ErrConfig indicates required type-specific configuration is missing.
	ErrConfig = errors.New("invalid monitor configuration")
	// ErrFetch indicates content acquisition failed (network, timeout, non-2xx).
	ErrFetch = errors.New("fetch failed")
	// ErrEvaluation indicates the external evaluation capability failed or
	// returned an unparseable payload.
	ErrEvaluation = errors.New("evaluation failed")
	// ErrUnsupportedType indicates no checker is registered for a monitor type.
	ErrUnsupportedType = errors.New("unsupported monitor type")
)

// NewConfigError reports a missing required configuration entry.
func NewConfigError(monitorName, key string) error {
	return fmt.Errorf("%w: monitor %q requires %q in config", ErrConfig, monitorName, key)
}

// WrapFetchError tags a content acquisition failure with the taxonomy.
func WrapFetchError(url string, err error) error {
	return fmt.Errorf("%w for %s: %w", ErrFetch, url, err)
}

// WrapEvaluationError tags an evaluation capability failure with the taxonomy.
func WrapEvaluationError(err error) error {
	return fmt.Errorf("%w: %w", ErrEvaluation, err)
}
