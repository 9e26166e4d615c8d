package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// LoadGlobalConfig loads the configuration from the given path, or returns
// defaults when no path is provided and no default file exists. Supports both
// YAML and JSON based on file extension. Secrets are taken from the
// environment after file parsing.
func LoadGlobalConfig(providedPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := resolveConfigPath(providedPath)
	if filePath != "" {
		info, err := os.Stat(filePath)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", filePath, err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", filePath, maxConfigFileSize)
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
		}
		if err := parseConfigContent(data, filePath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath returns the provided path, or the default config location
// when it exists, or empty when no config file should be loaded.
func resolveConfigPath(providedPath string) string {
	if providedPath != "" {
		return providedPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(home, ".notifyme", "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if ext == ".yaml" || ext == ".yml" {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

// applyEnvOverrides fills secret fields from the environment. File-based
// values for non-secret fields win over env defaults only when set.
func applyEnvOverrides(cfg *GlobalConfig) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.EvaluatorConfig.APIKey = v
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.NotificationConfig.SMTPUser = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.NotificationConfig.SMTPPassword = v
	}
	if v := os.Getenv("NOTIFY_EMAIL"); v != "" && cfg.NotificationConfig.NotifyEmail == "" {
		cfg.NotificationConfig.NotifyEmail = v
	}
	if v := os.Getenv("IMAP_USER"); v != "" {
		cfg.CreditsConfig.IMAPUser = v
	}
	if v := os.Getenv("IMAP_PASSWORD"); v != "" {
		cfg.CreditsConfig.IMAPPassword = v
	}
	if v := os.Getenv("CONSOLE_EMAIL"); v != "" && cfg.CreditsConfig.ConsoleEmail == "" {
		cfg.CreditsConfig.ConsoleEmail = v
	}
}

func validateConfig(cfg *GlobalConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
