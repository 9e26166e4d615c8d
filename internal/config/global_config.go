package config

// GlobalConfig contains all configuration sections for the application.
type GlobalConfig struct {
	LogConfig          LogConfig          `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	StorageConfig      StorageConfig      `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	FetcherConfig      FetcherConfig      `json:"fetcher_config,omitempty" yaml:"fetcher_config,omitempty"`
	EvaluatorConfig    EvaluatorConfig    `json:"evaluator_config,omitempty" yaml:"evaluator_config,omitempty"`
	NotificationConfig NotificationConfig `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	SchedulerConfig    SchedulerConfig    `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	CreditsConfig      CreditsConfig      `json:"credits_config,omitempty" yaml:"credits_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:          NewDefaultLogConfig(),
		StorageConfig:      NewDefaultStorageConfig(),
		FetcherConfig:      NewDefaultFetcherConfig(),
		EvaluatorConfig:    NewDefaultEvaluatorConfig(),
		NotificationConfig: NewDefaultNotificationConfig(),
		SchedulerConfig:    NewDefaultSchedulerConfig(),
		CreditsConfig:      NewDefaultCreditsConfig(),
	}
}
