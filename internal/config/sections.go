package config

// LogConfig defines logging output configuration.
type LogConfig struct {
	LogLevel      string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	LogFormat     string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,oneof=console json"`
	LogFile       string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	MaxLogSizeMB  int    `json:"max_log_size_mb,omitempty" yaml:"max_log_size_mb,omitempty" validate:"omitempty,min=1"`
	MaxLogBackups int    `json:"max_log_backups,omitempty" yaml:"max_log_backups,omitempty" validate:"omitempty,min=0"`
}

// NewDefaultLogConfig creates default logging configuration.
func NewDefaultLogConfig() LogConfig {
	return LogConfig{
		LogLevel:      "info",
		LogFormat:     "console",
		MaxLogSizeMB:  10,
		MaxLogBackups: 3,
	}
}

// StorageConfig defines where monitor state and notification history live.
type StorageConfig struct {
	DatabasePath string `json:"database_path,omitempty" yaml:"database_path,omitempty"`
}

// NewDefaultStorageConfig creates default storage configuration. The default
// database path resolves under the user home directory at open time.
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DatabasePath: "",
	}
}

// FetcherConfig defines HTTP content acquisition behavior.
type FetcherConfig struct {
	TimeoutSeconds     int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
	UserAgent          string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	BrowserFallback    bool   `json:"browser_fallback" yaml:"browser_fallback"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// NewDefaultFetcherConfig creates default fetcher configuration.
func NewDefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		TimeoutSeconds:  30,
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		BrowserFallback: true,
	}
}

// EvaluatorConfig defines the LLM evaluation capability.
type EvaluatorConfig struct {
	APIKey    string `json:"-" yaml:"-"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultEvaluatorConfig creates default evaluator configuration.
func NewDefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Model:     "gpt-4o-mini",
		MaxTokens: 300,
	}
}

// NotificationConfig defines SMTP email delivery.
type NotificationConfig struct {
	SMTPHost     string `json:"smtp_host,omitempty" yaml:"smtp_host,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty" yaml:"smtp_port,omitempty" validate:"omitempty,min=1,max=65535"`
	SMTPUser     string `json:"-" yaml:"-"`
	SMTPPassword string `json:"-" yaml:"-"`
	NotifyEmail  string `json:"notify_email,omitempty" yaml:"notify_email,omitempty" validate:"omitempty,email"`
}

// NewDefaultNotificationConfig creates default notification configuration.
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		SMTPHost: "smtp.gmail.com",
		SMTPPort: 587,
	}
}

// SchedulerConfig defines the daemon sweep schedule.
type SchedulerConfig struct {
	CronSpec string `json:"cron_spec,omitempty" yaml:"cron_spec,omitempty"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration.
// The default sweep runs every five minutes; per-monitor intervals decide
// which monitors are actually due.
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CronSpec: "*/5 * * * *",
	}
}

// CreditsConfig defines the magic-link balance retrieval flow.
type CreditsConfig struct {
	ConsoleEmail string `json:"console_email,omitempty" yaml:"console_email,omitempty" validate:"omitempty,email"`
	IMAPHost     string `json:"imap_host,omitempty" yaml:"imap_host,omitempty"`
	IMAPUser     string `json:"-" yaml:"-"`
	IMAPPassword string `json:"-" yaml:"-"`
	LoginURL     string `json:"login_url,omitempty" yaml:"login_url,omitempty"`
	BillingURL   string `json:"billing_url,omitempty" yaml:"billing_url,omitempty"`
	ArchiveEmail bool   `json:"archive_email" yaml:"archive_email"`
	Headed       bool   `json:"headed" yaml:"headed"`
	MaxWaitSecs  int    `json:"max_wait_seconds,omitempty" yaml:"max_wait_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultCreditsConfig creates default credits configuration.
func NewDefaultCreditsConfig() CreditsConfig {
	return CreditsConfig{
		IMAPHost:     "imap.gmail.com",
		LoginURL:     "https://console.anthropic.com/login",
		BillingURL:   "https://console.anthropic.com/settings/billing",
		ArchiveEmail: true,
		MaxWaitSecs:  90,
	}
}
