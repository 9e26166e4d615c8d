package datastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"notifyme/internal/models"
)

const monitorColumns = `id, name, type, url, config, check_interval_minutes, condition,
	last_checked, last_state, last_state_hash, is_active, created_at, updated_at`

// timeLayout is how timestamps are stored: ISO 8601 without zone, in UTC.
// sqlite's datetime() parses this form, so due-time arithmetic happens in SQL.
const timeLayout = "2006-01-02T15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Tolerate full RFC 3339 values written by earlier versions.
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalMonitorMaps(monitor *models.Monitor) (string, string, error) {
	configJSON, err := json.Marshal(monitor.Config)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal monitor config: %w", err)
	}
	stateJSON, err := json.Marshal(monitor.LastState)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal monitor state: %w", err)
	}
	return string(configJSON), string(stateJSON), nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitorRow(row *sql.Row) (*models.Monitor, error) {
	monitor, err := scanMonitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return monitor, err
}

func scanMonitorRows(rows *sql.Rows) ([]*models.Monitor, error) {
	var monitors []*models.Monitor
	for rows.Next() {
		monitor, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, monitor)
	}
	return monitors, rows.Err()
}

func scanMonitor(scanner rowScanner) (*models.Monitor, error) {
	var (
		monitor       models.Monitor
		monitorType   string
		configJSON    sql.NullString
		condition     sql.NullString
		lastChecked   sql.NullString
		stateJSON     sql.NullString
		lastStateHash sql.NullString
		isActive      int
		createdAt     string
		updatedAt     string
	)

	err := scanner.Scan(
		&monitor.ID, &monitor.Name, &monitorType, &monitor.URL, &configJSON,
		&monitor.CheckIntervalMinutes, &condition, &lastChecked, &stateJSON,
		&lastStateHash, &isActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	monitor.Type = models.MonitorType(monitorType)
	monitor.Condition = condition.String
	monitor.LastStateHash = lastStateHash.String
	monitor.IsActive = isActive != 0

	monitor.Config = map[string]any{}
	if configJSON.Valid && configJSON.String != "" {
		if err := json.Unmarshal([]byte(configJSON.String), &monitor.Config); err != nil {
			return nil, fmt.Errorf("corrupt config for monitor %s: %w", monitor.ID, err)
		}
	}
	monitor.LastState = map[string]any{}
	if stateJSON.Valid && stateJSON.String != "" {
		if err := json.Unmarshal([]byte(stateJSON.String), &monitor.LastState); err != nil {
			return nil, fmt.Errorf("corrupt state for monitor %s: %w", monitor.ID, err)
		}
	}

	if lastChecked.Valid {
		t, err := parseTime(lastChecked.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_checked for monitor %s: %w", monitor.ID, err)
		}
		monitor.LastChecked = &t
	}
	if monitor.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for monitor %s: %w", monitor.ID, err)
	}
	if monitor.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for monitor %s: %w", monitor.ID, err)
	}

	return &monitor, nil
}

func scanNotification(scanner rowScanner) (*models.NotificationLog, error) {
	var (
		entry       models.NotificationLog
		detailsJSON sql.NullString
		sentAt      string
	)
	if err := scanner.Scan(&entry.ID, &entry.MonitorID, &entry.Message, &detailsJSON, &sentAt); err != nil {
		return nil, err
	}

	entry.Details = map[string]any{}
	if detailsJSON.Valid && detailsJSON.String != "" {
		if err := json.Unmarshal([]byte(detailsJSON.String), &entry.Details); err != nil {
			return nil, fmt.Errorf("corrupt details for notification %s: %w", entry.ID, err)
		}
	}

	parsed, err := parseTime(sentAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt sent_at for notification %s: %w", entry.ID, err)
	}
	entry.SentAt = parsed
	return &entry, nil
}
