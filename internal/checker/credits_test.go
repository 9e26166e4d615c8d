package checker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyme/internal/models"
)

func TestCreditsCheckerHysteresis(t *testing.T) {
	balanceFetcher := &fakeBalanceFetcher{}
	cc := NewCreditsChecker(balanceFetcher, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeCredits)
	monitor.Config["threshold"] = 10.0

	steps := []struct {
		balance    float64
		wantNotify bool
	}{
		{balance: 25.00, wantNotify: false},
		{balance: 8.00, wantNotify: true},
		{balance: 4.00, wantNotify: false},
		{balance: 30.00, wantNotify: false},
		{balance: 9.99, wantNotify: true},
	}

	for i, step := range steps {
		balanceFetcher.balance = step.balance

		result, err := cc.Check(context.Background(), monitor)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantNotify, cc.ShouldNotify(monitor, result), "step %d (balance %.2f)", i, step.balance)

		monitor.LastState = cc.StateForStorage(monitor, result)
	}
}

func TestCreditsCheckerDefaultThreshold(t *testing.T) {
	cc := NewCreditsChecker(&fakeBalanceFetcher{balance: 4.50}, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeCredits)

	result, err := cc.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, result.ConditionMet)
	assert.Equal(t, "Credit balance: $4.50 (BELOW $5.00 threshold)", result.Explanation)
}

func TestCreditsCheckerStoresBalance(t *testing.T) {
	cc := NewCreditsChecker(&fakeBalanceFetcher{balance: 42.00}, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeCredits)

	result, err := cc.Check(context.Background(), monitor)
	require.NoError(t, err)

	state := cc.StateForStorage(monitor, result)
	assert.Equal(t, 42.00, state["last_balance"])
	assert.Equal(t, false, state["below_threshold"])
	assert.NotEmpty(t, state["explanation"])
}

func TestCreditsCheckerErrors(t *testing.T) {
	monitor := testMonitor(models.MonitorTypeCredits)

	noFetcher := NewCreditsChecker(nil, zerolog.Nop())
	_, err := noFetcher.Check(context.Background(), monitor)
	assert.ErrorIs(t, err, ErrConfig)

	failing := NewCreditsChecker(&fakeBalanceFetcher{err: assert.AnError}, zerolog.Nop())
	_, err = failing.Check(context.Background(), monitor)
	assert.ErrorIs(t, err, ErrFetch)
}
