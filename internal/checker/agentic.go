package checker

import (
	"context"

	"github.com/rs/zerolog"

	"notifyme/internal/models"
)

// defaultMaxContentChars caps the content handed to the evaluator.
const defaultMaxContentChars = 50000

// AgenticChecker delegates truth evaluation of a natural-language condition
// to the evaluation capability.
//
// Config options:
//   - use_browser: render via headless browser before evaluating
//   - max_content_chars: content cap before evaluation (default 50000)
//   - notify_on_each: notify per distinct event instead of on the first
//     false-to-true transition; useful for recurring events
type AgenticChecker struct {
	fetcher   models.Fetcher
	evaluator models.Evaluator
	logger    zerolog.Logger
}

// NewAgenticChecker creates a new AgenticChecker.
func NewAgenticChecker(fetcher models.Fetcher, evaluator models.Evaluator, logger zerolog.Logger) *AgenticChecker {
	return &AgenticChecker{
		fetcher:   fetcher,
		evaluator: evaluator,
		logger:    logger.With().Str("component", "AgenticChecker").Logger(),
	}
}

// Check fetches the page and asks the evaluator whether the condition holds.
func (ac *AgenticChecker) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	if monitor.Condition == "" {
		return nil, NewConfigError(monitor.Name, "condition")
	}

	opts := models.FetchOptions{UseBrowser: monitor.ConfigBool("use_browser", false)}
	fetchResult, err := ac.fetcher.Fetch(ctx, monitor.URL, opts)
	if err != nil {
		return nil, WrapFetchError(monitor.URL, err)
	}

	content := fetchResult.Text
	maxChars := monitor.ConfigInt("max_content_chars", defaultMaxContentChars)
	if maxChars > 0 && len(content) > maxChars {
		content = models.TruncateText(content, maxChars) + "\n\n[Content truncated...]"
	}

	evaluation, err := ac.evaluator.Evaluate(ctx, content, monitor.Condition)
	if err != nil {
		return nil, WrapEvaluationError(err)
	}

	details := make(map[string]any, len(evaluation.Details)+1)
	for k, v := range evaluation.Details {
		details[k] = v
	}
	if evaluation.EventID != "" {
		details["event_id"] = evaluation.EventID
	}

	return &models.CheckResult{
		ConditionMet: evaluation.ConditionMet,
		Explanation:  evaluation.Explanation,
		Details:      details,
		StateHash:    fetchResult.ContentHash,
	}, nil
}

// ShouldNotify uses false-to-true transition by default. In notify_on_each
// mode it notifies whenever the event identifier differs from the last
// notified one, falling back to an explanation fingerprint when the
// evaluation carries no event identifier.
func (ac *AgenticChecker) ShouldNotify(monitor *models.Monitor, result *models.CheckResult) bool {
	if !result.ConditionMet {
		return false
	}

	if !monitor.ConfigBool("notify_on_each", false) {
		return !monitor.StateBool("condition_met")
	}

	eventID, _ := result.Details["event_id"].(string)
	if eventID != "" {
		return eventID != monitor.StateString("last_notified_event_id")
	}
	return models.Fingerprint(result.Explanation) != monitor.StateString("last_explanation_hash")
}

// StateForStorage records the evaluation outcome plus the event tracking
// fields notify_on_each mode depends on.
func (ac *AgenticChecker) StateForStorage(monitor *models.Monitor, result *models.CheckResult) map[string]any {
	state := map[string]any{
		"condition_met": result.ConditionMet,
		"explanation":   result.Explanation,
		"details":       result.Details,
	}
	if result.ConditionMet {
		if eventID, _ := result.Details["event_id"].(string); eventID != "" {
			state["last_notified_event_id"] = eventID
		}
		state["last_explanation_hash"] = models.Fingerprint(result.Explanation)
	}
	return state
}
