package datastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"notifyme/internal/models"
)

// SQLiteRepository persists monitors and the notification log in a local
// SQLite database.
type SQLiteRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

// DefaultDatabasePath returns the database location used when none is
// configured: ~/.notifyme/notifyme.db.
func DefaultDatabasePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".notifyme", "notifyme.db"), nil
}

// NewSQLiteRepository opens (creating if needed) the database at the given
// path and ensures the schema exists.
func NewSQLiteRepository(databasePath string, logger zerolog.Logger) (*SQLiteRepository, error) {
	componentLogger := logger.With().Str("component", "SQLiteRepository").Logger()

	dbDir := filepath.Dir(databasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", databasePath, err)
	}

	repo := &SQLiteRepository{db: dbInstance, logger: componentLogger}
	if err := repo.initSchema(); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	componentLogger.Debug().Str("db_path", databasePath).Msg("Database initialized and schema verified")
	return repo, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS monitors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		url TEXT NOT NULL,
		config TEXT,
		check_interval_minutes INTEGER DEFAULT 60,
		condition TEXT,
		last_checked TEXT,
		last_state TEXT,
		last_state_hash TEXT,
		is_active INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications_log (
		id TEXT PRIMARY KEY,
		monitor_id TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT,
		sent_at TEXT NOT NULL,
		FOREIGN KEY (monitor_id) REFERENCES monitors(id)
	);

	CREATE INDEX IF NOT EXISTS idx_monitors_active ON monitors(is_active);
	CREATE INDEX IF NOT EXISTS idx_monitors_last_checked ON monitors(last_checked);
	CREATE INDEX IF NOT EXISTS idx_notifications_monitor ON notifications_log(monitor_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_sent ON notifications_log(sent_at);
	`
	if _, err := r.db.Exec(query); err != nil {
		return err
	}
	return nil
}

// AddMonitor inserts a new monitor.
func (r *SQLiteRepository) AddMonitor(monitor *models.Monitor) error {
	configJSON, stateJSON, err := marshalMonitorMaps(monitor)
	if err != nil {
		return err
	}

	query := `INSERT INTO monitors (
		id, name, type, url, config, check_interval_minutes, condition,
		last_checked, last_state, last_state_hash, is_active, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		monitor.ID, monitor.Name, string(monitor.Type), monitor.URL, configJSON,
		monitor.CheckIntervalMinutes, nullableString(monitor.Condition),
		nullableTime(monitor.LastChecked), stateJSON, nullableString(monitor.LastStateHash),
		boolToInt(monitor.IsActive), formatTime(monitor.CreatedAt), formatTime(monitor.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert monitor %s: %w", monitor.Name, err)
	}

	r.logger.Debug().Str("monitor_id", monitor.ID).Str("name", monitor.Name).Msg("Monitor added")
	return nil
}

// GetMonitor fetches a monitor by ID, returning nil when absent.
func (r *SQLiteRepository) GetMonitor(id string) (*models.Monitor, error) {
	row := r.db.QueryRow(`SELECT `+monitorColumns+` FROM monitors WHERE id = ?`, id)
	return scanMonitorRow(row)
}

// GetMonitorByName fetches a monitor by name, case-insensitively.
func (r *SQLiteRepository) GetMonitorByName(name string) (*models.Monitor, error) {
	row := r.db.QueryRow(`SELECT `+monitorColumns+` FROM monitors WHERE LOWER(name) = LOWER(?)`, name)
	return scanMonitorRow(row)
}

// ListMonitors returns all monitors ordered by creation time.
func (r *SQLiteRepository) ListMonitors(activeOnly bool) ([]*models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + monitorColumns + ` FROM monitors WHERE is_active = 1 ORDER BY created_at`
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	defer rows.Close()

	return scanMonitorRows(rows)
}

// GetMonitorsDue returns active monitors whose interval has elapsed since the
// last check (or which were never checked), never-checked first.
func (r *SQLiteRepository) GetMonitorsDue(now time.Time) ([]*models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors
		WHERE is_active = 1
		AND (
			last_checked IS NULL
			OR datetime(last_checked, '+' || check_interval_minutes || ' minutes') <= datetime(?)
		)
		ORDER BY last_checked IS NOT NULL, last_checked`

	rows, err := r.db.Query(query, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to query due monitors: %w", err)
	}
	defer rows.Close()

	return scanMonitorRows(rows)
}

// UpdateMonitor persists the full monitor record, stamping updated_at.
func (r *SQLiteRepository) UpdateMonitor(monitor *models.Monitor) error {
	monitor.UpdatedAt = time.Now()
	configJSON, stateJSON, err := marshalMonitorMaps(monitor)
	if err != nil {
		return err
	}

	query := `UPDATE monitors SET
		name = ?, type = ?, url = ?, config = ?, check_interval_minutes = ?,
		condition = ?, last_checked = ?, last_state = ?, last_state_hash = ?,
		is_active = ?, updated_at = ?
	WHERE id = ?`

	_, err = r.db.Exec(query,
		monitor.Name, string(monitor.Type), monitor.URL, configJSON, monitor.CheckIntervalMinutes,
		nullableString(monitor.Condition), nullableTime(monitor.LastChecked), stateJSON,
		nullableString(monitor.LastStateHash), boolToInt(monitor.IsActive), formatTime(monitor.UpdatedAt),
		monitor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update monitor %s: %w", monitor.ID, err)
	}
	return nil
}

// DeleteMonitor removes a monitor and its notification history.
func (r *SQLiteRepository) DeleteMonitor(id string) (bool, error) {
	if _, err := r.db.Exec(`DELETE FROM notifications_log WHERE monitor_id = ?`, id); err != nil {
		return false, fmt.Errorf("failed to delete notifications for monitor %s: %w", id, err)
	}
	result, err := r.db.Exec(`DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete monitor %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetMonitorActive pauses or resumes a monitor.
func (r *SQLiteRepository) SetMonitorActive(id string, active bool) (bool, error) {
	result, err := r.db.Exec(
		`UPDATE monitors SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(time.Now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set monitor %s active=%t: %w", id, active, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddNotification appends a record to the notification log.
func (r *SQLiteRepository) AddNotification(log *models.NotificationLog) error {
	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal notification details: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO notifications_log (id, monitor_id, message, details, sent_at) VALUES (?, ?, ?, ?, ?)`,
		log.ID, log.MonitorID, log.Message, string(detailsJSON), formatTime(log.SentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification for monitor %s: %w", log.MonitorID, err)
	}
	return nil
}

// GetNotifications returns notification history, newest first. An empty
// monitorID returns history across all monitors.
func (r *SQLiteRepository) GetNotifications(monitorID string, limit int) ([]*models.NotificationLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if monitorID != "" {
		rows, err = r.db.Query(
			`SELECT id, monitor_id, message, details, sent_at FROM notifications_log
			 WHERE monitor_id = ? ORDER BY sent_at DESC LIMIT ?`, monitorID, limit)
	} else {
		rows, err = r.db.Query(
			`SELECT id, monitor_id, message, details, sent_at FROM notifications_log
			 ORDER BY sent_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var logs []*models.NotificationLog
	for rows.Next() {
		entry, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// GetLastNotification returns the most recent notification for a monitor, or
// nil when none exists.
func (r *SQLiteRepository) GetLastNotification(monitorID string) (*models.NotificationLog, error) {
	logs, err := r.GetNotifications(monitorID, 1)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return logs[0], nil
}
