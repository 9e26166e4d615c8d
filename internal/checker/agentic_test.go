package checker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyme/internal/models"
)

func agenticMonitor() *models.Monitor {
	monitor := testMonitor(models.MonitorTypeAgentic)
	monitor.Condition = "the team won"
	return monitor
}

func agenticFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{
		"https://example.com/page": "<html><body>final score 3-1</body></html>",
	}}
}

func TestAgenticCheckerRequiresCondition(t *testing.T) {
	ac := NewAgenticChecker(agenticFetcher(), &fakeEvaluator{}, zerolog.Nop())
	monitor := testMonitor(models.MonitorTypeAgentic)

	_, err := ac.Check(context.Background(), monitor)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestAgenticCheckerDefaultTransitionNotify(t *testing.T) {
	evaluator := &fakeEvaluator{evaluation: &models.Evaluation{
		ConditionMet: true,
		Explanation:  "The team won 3-1",
	}}
	ac := NewAgenticChecker(agenticFetcher(), evaluator, zerolog.Nop())
	monitor := agenticMonitor()

	result, err := ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, result.ConditionMet)
	assert.True(t, ac.ShouldNotify(monitor, result))
	monitor.LastState = ac.StateForStorage(monitor, result)

	// Condition still true on the next cycle: stay quiet.
	result, err = ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.False(t, ac.ShouldNotify(monitor, result))

	// Condition goes false, then true again: re-armed.
	evaluator.evaluation = &models.Evaluation{ConditionMet: false, Explanation: "No result yet"}
	result, err = ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.False(t, ac.ShouldNotify(monitor, result))
	monitor.LastState = ac.StateForStorage(monitor, result)

	evaluator.evaluation = &models.Evaluation{ConditionMet: true, Explanation: "Won again"}
	result, err = ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, ac.ShouldNotify(monitor, result))
}

func TestAgenticCheckerNotifyOnEachEventID(t *testing.T) {
	evaluator := &fakeEvaluator{evaluation: &models.Evaluation{
		ConditionMet: true,
		Explanation:  "Match played",
		EventID:      "2026-08-30_match",
	}}
	ac := NewAgenticChecker(agenticFetcher(), evaluator, zerolog.Nop())
	monitor := agenticMonitor()
	monitor.Config["notify_on_each"] = true

	result, err := ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, ac.ShouldNotify(monitor, result))
	monitor.LastState = ac.StateForStorage(monitor, result)

	// Same event id: already notified.
	result, err = ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.False(t, ac.ShouldNotify(monitor, result))

	// New event id: notify again even though condition never went false.
	evaluator.evaluation = &models.Evaluation{
		ConditionMet: true,
		Explanation:  "Another match played",
		EventID:      "2026-08-31_match",
	}
	result, err = ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, ac.ShouldNotify(monitor, result))
}

func TestAgenticCheckerNotifyOnEachExplanationFallback(t *testing.T) {
	evaluator := &fakeEvaluator{evaluation: &models.Evaluation{
		ConditionMet: true,
		Explanation:  "Event A happened",
	}}
	ac := NewAgenticChecker(agenticFetcher(), evaluator, zerolog.Nop())
	monitor := agenticMonitor()
	monitor.Config["notify_on_each"] = true

	result, err := ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, ac.ShouldNotify(monitor, result))
	monitor.LastState = ac.StateForStorage(monitor, result)

	// Identical explanation dedups without an event id.
	result, err = ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.False(t, ac.ShouldNotify(monitor, result))

	evaluator.evaluation = &models.Evaluation{ConditionMet: true, Explanation: "Event B happened"}
	result, err = ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, ac.ShouldNotify(monitor, result))
}

func TestAgenticCheckerTruncatesContent(t *testing.T) {
	longBody := strings.Repeat("x", 2000)
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/page": longBody,
	}}

	var evaluatedContent string
	evaluator := &fakeEvaluator{decide: func(content, _ string) *models.Evaluation {
		evaluatedContent = content
		return &models.Evaluation{ConditionMet: false, Explanation: "n/a"}
	}}

	ac := NewAgenticChecker(fetcher, evaluator, zerolog.Nop())
	monitor := agenticMonitor()
	monitor.Config["max_content_chars"] = 100

	_, err := ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(evaluatedContent, strings.Repeat("x", 100)))
	assert.True(t, strings.HasSuffix(evaluatedContent, "[Content truncated...]"))
}

func TestAgenticCheckerTruncationKeepsValidUTF8(t *testing.T) {
	// Each rune is two bytes, so an odd byte limit lands mid-rune.
	longBody := strings.Repeat("é", 60)
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/page": longBody,
	}}

	var evaluatedContent string
	evaluator := &fakeEvaluator{decide: func(content, _ string) *models.Evaluation {
		evaluatedContent = content
		return &models.Evaluation{ConditionMet: false, Explanation: "n/a"}
	}}

	ac := NewAgenticChecker(fetcher, evaluator, zerolog.Nop())
	monitor := agenticMonitor()
	monitor.Config["max_content_chars"] = 99

	_, err := ac.Check(context.Background(), monitor)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(evaluatedContent))
	assert.True(t, strings.HasPrefix(evaluatedContent, strings.Repeat("é", 49)))
	assert.True(t, strings.HasSuffix(evaluatedContent, "[Content truncated...]"))
}

func TestAgenticCheckerEvaluationError(t *testing.T) {
	ac := NewAgenticChecker(agenticFetcher(), &fakeEvaluator{err: assert.AnError}, zerolog.Nop())

	_, err := ac.Check(context.Background(), agenticMonitor())
	assert.ErrorIs(t, err, ErrEvaluation)
}
