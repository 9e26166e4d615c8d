package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyme/internal/checker"
	"notifyme/internal/models"
)

// memoryRepo is an in-memory MonitorRepository for orchestration tests.
type memoryRepo struct {
	mu            sync.Mutex
	monitors      map[string]*models.Monitor
	notifications []*models.NotificationLog
	updateCalls   int
	updateErr     error
}

func newMemoryRepo(monitors ...*models.Monitor) *memoryRepo {
	repo := &memoryRepo{monitors: make(map[string]*models.Monitor)}
	for _, monitor := range monitors {
		repo.monitors[monitor.ID] = monitor
	}
	return repo
}

func (r *memoryRepo) AddMonitor(monitor *models.Monitor) error {
	r.monitors[monitor.ID] = monitor
	return nil
}

func (r *memoryRepo) GetMonitor(id string) (*models.Monitor, error) {
	return r.monitors[id], nil
}

func (r *memoryRepo) GetMonitorByName(name string) (*models.Monitor, error) {
	for _, monitor := range r.monitors {
		if monitor.Name == name {
			return monitor, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) ListMonitors(activeOnly bool) ([]*models.Monitor, error) {
	var out []*models.Monitor
	for _, monitor := range r.monitors {
		if !activeOnly || monitor.IsActive {
			out = append(out, monitor)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetMonitorsDue(now time.Time) ([]*models.Monitor, error) {
	var due []*models.Monitor
	for _, monitor := range r.monitors {
		if monitor.IsDue(now) {
			due = append(due, monitor)
		}
	}
	return due, nil
}

func (r *memoryRepo) UpdateMonitor(monitor *models.Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	r.monitors[monitor.ID] = monitor
	return nil
}

func (r *memoryRepo) DeleteMonitor(id string) (bool, error) {
	_, existed := r.monitors[id]
	delete(r.monitors, id)
	return existed, nil
}

func (r *memoryRepo) SetMonitorActive(id string, active bool) (bool, error) {
	monitor, ok := r.monitors[id]
	if !ok {
		return false, nil
	}
	monitor.IsActive = active
	return true, nil
}

func (r *memoryRepo) AddNotification(log *models.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, log)
	return nil
}

func (r *memoryRepo) GetNotifications(monitorID string, limit int) ([]*models.NotificationLog, error) {
	var out []*models.NotificationLog
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if monitorID == "" || r.notifications[i].MonitorID == monitorID {
			out = append(out, r.notifications[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) GetLastNotification(monitorID string) (*models.NotificationLog, error) {
	logs, err := r.GetNotifications(monitorID, 1)
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	return logs[0], nil
}

// recordingNotifier records sends instead of delivering.
type recordingNotifier struct {
	sent    []*models.Monitor
	dryRuns []bool
	err     error
}

func (n *recordingNotifier) Send(_ context.Context, monitor *models.Monitor, result *models.CheckResult, dryRun bool) (*models.NotificationLog, error) {
	if n.err != nil {
		return nil, n.err
	}
	n.sent = append(n.sent, monitor)
	n.dryRuns = append(n.dryRuns, dryRun)
	return models.NewNotificationLog(monitor.ID, result.Explanation, nil), nil
}

// stubChecker drives orchestration paths directly.
type stubChecker struct {
	result *models.CheckResult
	err    error
	notify bool
	state  map[string]any
}

func (c *stubChecker) Check(_ context.Context, _ *models.Monitor) (*models.CheckResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func (c *stubChecker) ShouldNotify(_ *models.Monitor, _ *models.CheckResult) bool {
	return c.notify
}

func (c *stubChecker) StateForStorage(_ *models.Monitor, _ *models.CheckResult) map[string]any {
	return c.state
}

// overlapChecker tracks how many Check calls are in flight at once.
type overlapChecker struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (c *overlapChecker) Check(_ context.Context, _ *models.Monitor) (*models.CheckResult, error) {
	n := c.inFlight.Add(1)
	for {
		seen := c.maxInFlight.Load()
		if n <= seen || c.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	c.inFlight.Add(-1)
	return &models.CheckResult{Explanation: "ok"}, nil
}

func (c *overlapChecker) ShouldNotify(_ *models.Monitor, _ *models.CheckResult) bool { return false }

func (c *overlapChecker) StateForStorage(_ *models.Monitor, _ *models.CheckResult) map[string]any {
	return map[string]any{}
}

// barrierChecker announces each Check entry and blocks until released.
type barrierChecker struct {
	entered chan struct{}
	release chan struct{}
}

func (c *barrierChecker) Check(_ context.Context, _ *models.Monitor) (*models.CheckResult, error) {
	c.entered <- struct{}{}
	<-c.release
	return &models.CheckResult{Explanation: "ok"}, nil
}

func (c *barrierChecker) ShouldNotify(_ *models.Monitor, _ *models.CheckResult) bool { return false }

func (c *barrierChecker) StateForStorage(_ *models.Monitor, _ *models.CheckResult) map[string]any {
	return map[string]any{}
}

func registryWith(monitorType models.MonitorType, c checker.Checker) *checker.Registry {
	registry := checker.NewRegistry()
	registry.Register(monitorType, c)
	return registry
}

func activeMonitor(name string, monitorType models.MonitorType) *models.Monitor {
	return models.NewMonitor(name, monitorType, "https://example.com/"+name)
}

func TestCheckOneNotifiesAndPersists(t *testing.T) {
	monitor := activeMonitor("m1", models.MonitorTypeWebpage)
	repo := newMemoryRepo(monitor)
	emailNotifier := &recordingNotifier{}
	stub := &stubChecker{
		result: &models.CheckResult{ConditionMet: true, Explanation: "changed", StateHash: "abc123"},
		notify: true,
		state:  map[string]any{"condition_met": true, "hash": "abc123"},
	}

	co := NewCheckOrchestrator(repo, emailNotifier, registryWith(models.MonitorTypeWebpage, stub), false, zerolog.Nop())

	result, notified, err := co.CheckOne(context.Background(), monitor, nil)
	require.NoError(t, err)
	assert.True(t, notified)
	assert.True(t, result.ConditionMet)

	assert.Len(t, emailNotifier.sent, 1)
	assert.Len(t, repo.notifications, 1)
	assert.Equal(t, 1, repo.updateCalls)
	assert.Equal(t, "abc123", monitor.LastStateHash)
	assert.Equal(t, stub.state, monitor.LastState)
	require.NotNil(t, monitor.LastChecked)
}

func TestCheckOneFailClosed(t *testing.T) {
	monitor := activeMonitor("m1", models.MonitorTypeWebpage)
	previousState := map[string]any{"hash": "old"}
	monitor.LastState = previousState

	repo := newMemoryRepo(monitor)
	emailNotifier := &recordingNotifier{}
	stub := &stubChecker{err: errors.New("fetch blew up")}

	co := NewCheckOrchestrator(repo, emailNotifier, registryWith(models.MonitorTypeWebpage, stub), false, zerolog.Nop())

	_, notified, err := co.CheckOne(context.Background(), monitor, nil)
	require.Error(t, err)
	assert.False(t, notified)

	// A failed check leaves everything untouched.
	assert.Equal(t, previousState, monitor.LastState)
	assert.Nil(t, monitor.LastChecked)
	assert.Zero(t, repo.updateCalls)
	assert.Empty(t, emailNotifier.sent)
	assert.Empty(t, repo.notifications)
}

func TestCheckOneUnsupportedType(t *testing.T) {
	monitor := activeMonitor("m1", models.MonitorType("bogus"))
	co := NewCheckOrchestrator(newMemoryRepo(monitor), &recordingNotifier{}, checker.NewRegistry(), false, zerolog.Nop())

	_, _, err := co.CheckOne(context.Background(), monitor, nil)
	assert.ErrorIs(t, err, checker.ErrUnsupportedType)
}

func TestCheckOneDryRunPassedToNotifier(t *testing.T) {
	monitor := activeMonitor("m1", models.MonitorTypeWebpage)
	emailNotifier := &recordingNotifier{}
	stub := &stubChecker{
		result: &models.CheckResult{ConditionMet: true, Explanation: "changed"},
		notify: true,
		state:  map[string]any{},
	}

	co := NewCheckOrchestrator(newMemoryRepo(monitor), emailNotifier, registryWith(models.MonitorTypeWebpage, stub), true, zerolog.Nop())

	_, notified, err := co.CheckOne(context.Background(), monitor, nil)
	require.NoError(t, err)
	assert.True(t, notified)
	require.Len(t, emailNotifier.dryRuns, 1)
	assert.True(t, emailNotifier.dryRuns[0])
}

func TestCheckOneNotifierFailureStillPersistsState(t *testing.T) {
	monitor := activeMonitor("m1", models.MonitorTypeWebpage)
	repo := newMemoryRepo(monitor)
	stub := &stubChecker{
		result: &models.CheckResult{ConditionMet: true, Explanation: "changed"},
		notify: true,
		state:  map[string]any{"condition_met": true},
	}

	co := NewCheckOrchestrator(repo, &recordingNotifier{err: errors.New("smtp down")}, registryWith(models.MonitorTypeWebpage, stub), false, zerolog.Nop())

	_, notified, err := co.CheckOne(context.Background(), monitor, nil)
	require.NoError(t, err)
	assert.False(t, notified)
	assert.Equal(t, 1, repo.updateCalls)
	assert.Empty(t, repo.notifications)
}

func TestCheckOneObserverPanicIsRecovered(t *testing.T) {
	monitor := activeMonitor("m1", models.MonitorTypeWebpage)
	stub := &stubChecker{
		result: &models.CheckResult{Explanation: "ok"},
		state:  map[string]any{},
	}
	co := NewCheckOrchestrator(newMemoryRepo(monitor), &recordingNotifier{}, registryWith(models.MonitorTypeWebpage, stub), false, zerolog.Nop())

	result, _, err := co.CheckOne(context.Background(), monitor, func(*models.Monitor, *models.CheckResult, bool) {
		panic("observer bug")
	})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestCheckAllIsolatesFailures(t *testing.T) {
	healthy1 := activeMonitor("healthy-1", models.MonitorTypeWebpage)
	broken := activeMonitor("broken", models.MonitorTypePrice)
	brokenState := map[string]any{"below_threshold": true}
	broken.LastState = brokenState
	healthy2 := activeMonitor("healthy-2", models.MonitorTypeNews)

	repo := newMemoryRepo(healthy1, broken, healthy2)

	registry := checker.NewRegistry()
	okChecker := &stubChecker{result: &models.CheckResult{Explanation: "ok"}, state: map[string]any{}}
	registry.Register(models.MonitorTypeWebpage, okChecker)
	registry.Register(models.MonitorTypeNews, okChecker)
	registry.Register(models.MonitorTypePrice, &stubChecker{err: errors.New("selector exploded")})

	co := NewCheckOrchestrator(repo, &recordingNotifier{}, registry, false, zerolog.Nop())

	var observed []string
	outcomes, err := co.CheckAll(context.Background(), func(monitor *models.Monitor, _ *models.CheckResult, _ bool) {
		observed = append(observed, monitor.Name)
	})
	require.NoError(t, err)

	assert.Len(t, outcomes, 2)
	assert.Len(t, observed, 2)
	assert.NotContains(t, observed, "broken")

	// The failed monitor's stored state is untouched.
	assert.Equal(t, brokenState, broken.LastState)
	assert.Nil(t, broken.LastChecked)
}

func TestCheckOneSerializesSameMonitor(t *testing.T) {
	monitor := activeMonitor("m1", models.MonitorTypeWebpage)
	repo := newMemoryRepo(monitor)
	stub := &overlapChecker{}
	co := NewCheckOrchestrator(repo, &recordingNotifier{}, registryWith(models.MonitorTypeWebpage, stub), false, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := co.CheckOne(context.Background(), monitor, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Only ever one check in flight for the same monitor ID.
	assert.Equal(t, int32(1), stub.maxInFlight.Load())
	assert.Equal(t, 4, repo.updateCalls)
}

func TestCheckOneDistinctMonitorsRunConcurrently(t *testing.T) {
	first := activeMonitor("first", models.MonitorTypeWebpage)
	second := activeMonitor("second", models.MonitorTypeWebpage)
	stub := &barrierChecker{entered: make(chan struct{}, 2), release: make(chan struct{})}
	co := NewCheckOrchestrator(newMemoryRepo(first, second), &recordingNotifier{}, registryWith(models.MonitorTypeWebpage, stub), false, zerolog.Nop())

	var wg sync.WaitGroup
	for _, monitor := range []*models.Monitor{first, second} {
		wg.Add(1)
		go func(m *models.Monitor) {
			defer wg.Done()
			_, _, err := co.CheckOne(context.Background(), m, nil)
			assert.NoError(t, err)
		}(monitor)
	}

	// Both checks must reach the checker while the other is still blocked.
	for i := 0; i < 2; i++ {
		select {
		case <-stub.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("checks for distinct monitors did not overlap")
		}
	}
	close(stub.release)
	wg.Wait()
}

func TestCheckAllDueSkipsNotDueMonitors(t *testing.T) {
	due := activeMonitor("due", models.MonitorTypeWebpage)
	recent := activeMonitor("recent", models.MonitorTypeWebpage)
	now := time.Now()
	recent.LastChecked = &now

	repo := newMemoryRepo(due, recent)
	stub := &stubChecker{result: &models.CheckResult{Explanation: "ok"}, state: map[string]any{}}
	co := NewCheckOrchestrator(repo, &recordingNotifier{}, registryWith(models.MonitorTypeWebpage, stub), false, zerolog.Nop())

	outcomes, err := co.CheckAllDue(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "due", outcomes[0].Monitor.Name)
}
