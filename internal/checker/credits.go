package checker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"notifyme/internal/models"
)

// defaultCreditsThreshold is the balance below which alerts fire when the
// monitor does not configure its own threshold.
const defaultCreditsThreshold = 5.00

// CreditsChecker watches an account credit balance retrieved through an
// external authentication flow and alerts when it drops below a threshold.
//
// Config options:
//   - threshold: balance threshold for alerting (default 5.00)
type CreditsChecker struct {
	balanceFetcher models.BalanceFetcher
	logger         zerolog.Logger
}

// NewCreditsChecker creates a new CreditsChecker.
func NewCreditsChecker(balanceFetcher models.BalanceFetcher, logger zerolog.Logger) *CreditsChecker {
	return &CreditsChecker{
		balanceFetcher: balanceFetcher,
		logger:         logger.With().Str("component", "CreditsChecker").Logger(),
	}
}

// Check retrieves the balance and compares it to the threshold.
func (cc *CreditsChecker) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	if cc.balanceFetcher == nil {
		return nil, NewConfigError(monitor.Name, "balance credentials")
	}
	threshold, _ := monitor.ConfigFloat("threshold", defaultCreditsThreshold)

	balance, err := cc.balanceFetcher.FetchBalance(ctx)
	if err != nil {
		return nil, WrapFetchError(monitor.URL, err)
	}

	belowThreshold := balance < threshold
	status := "above"
	if belowThreshold {
		status = "BELOW"
	}

	return &models.CheckResult{
		ConditionMet: belowThreshold,
		Explanation:  fmt.Sprintf("Credit balance: $%.2f (%s $%.2f threshold)", balance, status, threshold),
		Details: map[string]any{
			"balance":         balance,
			"threshold":       threshold,
			"below_threshold": belowThreshold,
		},
		StateHash: models.Fingerprint(fmt.Sprintf("%.2f", balance)),
	}, nil
}

// ShouldNotify fires only on the transition into below-threshold territory,
// the same hysteresis as the price checker. Recovery above the threshold
// stays quiet, but re-arms the next drop.
func (cc *CreditsChecker) ShouldNotify(monitor *models.Monitor, result *models.CheckResult) bool {
	if !result.ConditionMet {
		return false
	}
	return !monitor.StateBool("below_threshold")
}

// StateForStorage stores the threshold status and last observed balance.
func (cc *CreditsChecker) StateForStorage(monitor *models.Monitor, result *models.CheckResult) map[string]any {
	state := map[string]any{
		"condition_met":   result.ConditionMet,
		"below_threshold": result.ConditionMet,
		"explanation":     result.Explanation,
	}
	if balance, ok := result.Details["balance"]; ok {
		state["last_balance"] = balance
	}
	return state
}
