package checker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyme/internal/models"
)

func TestWebpageCheckerBaselineNeverNotifies(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/page": "<html><body>hello world</body></html>",
	}}
	wc := NewWebpageChecker(fetcher, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeWebpage)

	result, err := wc.Check(context.Background(), monitor)
	require.NoError(t, err)

	assert.False(t, result.ConditionMet)
	assert.Equal(t, "First check - baseline recorded", result.Explanation)
	assert.False(t, wc.ShouldNotify(monitor, result))

	state := wc.StateForStorage(monitor, result)
	assert.Equal(t, result.StateHash, state["hash"])
	assert.Equal(t, false, state["condition_met"])
}

func TestWebpageCheckerDetectsChange(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/page": "<html><body>version one</body></html>",
	}}
	wc := NewWebpageChecker(fetcher, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeWebpage)

	first, err := wc.Check(context.Background(), monitor)
	require.NoError(t, err)
	monitor.LastState = wc.StateForStorage(monitor, first)

	// Same content again: no change, no notification.
	second, err := wc.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.False(t, second.ConditionMet)
	assert.Equal(t, "No changes detected", second.Explanation)
	assert.False(t, wc.ShouldNotify(monitor, second))
	monitor.LastState = wc.StateForStorage(monitor, second)

	// Changed content: condition met and notify.
	fetcher.pages["https://example.com/page"] = "<html><body>version two</body></html>"
	third, err := wc.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, third.ConditionMet)
	assert.Equal(t, "Page content has changed", third.Explanation)
	assert.True(t, wc.ShouldNotify(monitor, third))
	assert.Contains(t, third.Details, "diff_summary")
}

func TestWebpageCheckerSelectorScopesHash(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/page": `<html><body><div id="price">42</div><div id="noise">a</div></body></html>`,
	}}
	wc := NewWebpageChecker(fetcher, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeWebpage)
	monitor.Config["selector"] = "#price"

	first, err := wc.Check(context.Background(), monitor)
	require.NoError(t, err)
	monitor.LastState = wc.StateForStorage(monitor, first)

	// Change outside the selector must not register.
	fetcher.pages["https://example.com/page"] = `<html><body><div id="price">42</div><div id="noise">b</div></body></html>`
	second, err := wc.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.False(t, second.ConditionMet)

	// Change inside the selector must.
	fetcher.pages["https://example.com/page"] = `<html><body><div id="price">43</div><div id="noise">b</div></body></html>`
	third, err := wc.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, third.ConditionMet)
}

func TestWebpageCheckerFetchErrorIsFetchError(t *testing.T) {
	wc := NewWebpageChecker(&fakeFetcher{err: assert.AnError}, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeWebpage)

	_, err := wc.Check(context.Background(), monitor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}
