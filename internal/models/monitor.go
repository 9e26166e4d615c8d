package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MonitorType identifies which checker strategy handles a monitor.
type MonitorType string

const (
	MonitorTypeWebpage MonitorType = "webpage"
	MonitorTypePrice   MonitorType = "price"
	MonitorTypeNews    MonitorType = "news"
	MonitorTypeRSS     MonitorType = "rss"
	MonitorTypeAgentic MonitorType = "agentic"
	MonitorTypeCredits MonitorType = "credits"
)

// ParseMonitorType converts a string into a MonitorType, rejecting unknown values.
func ParseMonitorType(value string) (MonitorType, error) {
	mt := MonitorType(value)
	switch mt {
	case MonitorTypeWebpage, MonitorTypePrice, MonitorTypeNews, MonitorTypeRSS, MonitorTypeAgentic, MonitorTypeCredits:
		return mt, nil
	}
	return "", fmt.Errorf("unknown monitor type: %q", value)
}

// Monitor represents a persisted watch target.
//
// LastState is an opaque snapshot owned entirely by the checker matching the
// monitor's type; the orchestrator persists it verbatim and never inspects it.
type Monitor struct {
	ID                   string
	Name                 string
	Type                 MonitorType
	URL                  string
	Config               map[string]any
	CheckIntervalMinutes int
	Condition            string
	LastChecked          *time.Time
	LastState            map[string]any
	LastStateHash        string
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewMonitor creates a monitor with a fresh ID and default interval.
func NewMonitor(name string, monitorType MonitorType, url string) *Monitor {
	now := time.Now()
	return &Monitor{
		ID:                   uuid.NewString(),
		Name:                 name,
		Type:                 monitorType,
		URL:                  url,
		Config:               make(map[string]any),
		CheckIntervalMinutes: 60,
		LastState:            make(map[string]any),
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// ConfigString returns a string config entry, or the fallback when absent.
func (m *Monitor) ConfigString(key, fallback string) string {
	if v, ok := m.Config[key].(string); ok {
		return v
	}
	return fallback
}

// ConfigBool returns a boolean config entry, or the fallback when absent.
func (m *Monitor) ConfigBool(key string, fallback bool) bool {
	if v, ok := m.Config[key].(bool); ok {
		return v
	}
	return fallback
}

// ConfigFloat returns a numeric config entry, or (fallback, false) when the
// entry is absent or not a number. JSON round-trips turn all numbers into
// float64, so integer values are accepted too.
func (m *Monitor) ConfigFloat(key string, fallback float64) (float64, bool) {
	switch v := m.Config[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return fallback, false
}

// ConfigInt returns an integer config entry, or the fallback when absent.
func (m *Monitor) ConfigInt(key string, fallback int) int {
	if v, ok := m.ConfigFloat(key, 0); ok {
		return int(v)
	}
	return fallback
}

// StateString returns a string entry from the last-observation state.
func (m *Monitor) StateString(key string) string {
	if v, ok := m.LastState[key].(string); ok {
		return v
	}
	return ""
}

// StateBool returns a boolean entry from the last-observation state.
func (m *Monitor) StateBool(key string) bool {
	if v, ok := m.LastState[key].(bool); ok {
		return v
	}
	return false
}

// StateStrings returns a string-slice entry from the last-observation state.
// Slices that passed through JSON deserialization come back as []any.
func (m *Monitor) StateStrings(key string) []string {
	switch v := m.LastState[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IsDue reports whether the monitor should be checked at the given time.
func (m *Monitor) IsDue(now time.Time) bool {
	if !m.IsActive {
		return false
	}
	if m.LastChecked == nil {
		return true
	}
	next := m.LastChecked.Add(time.Duration(m.CheckIntervalMinutes) * time.Minute)
	return !next.After(now)
}
