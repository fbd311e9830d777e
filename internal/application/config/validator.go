package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
)

// Validate ensures config structure is consistent. It goes further than
// Config.ValidateConsistency by checking referenced files.
func Validate(cfg domain.Config) error {
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	if err := validatePreferences(cfg.Preferences); err != nil {
		return err
	}
	if err := validateRecognizer(cfg.Recognizer); err != nil {
		return err
	}
	if err := validateExecution(cfg.Execution); err != nil {
		return err
	}
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	return nil
}

func validatePreferences(prefs domain.Preferences) error {
	if prefs.TimeoutSeconds < 0 {
		return errors.New("preferences.timeout must be >= 0")
	}
	return nil
}

func validateRecognizer(rec domain.RecognizerSettings) error {
	if rec.KnowledgeFile == "" {
		return nil
	}
	if _, err := os.Stat(filesystem.ExpandPath(rec.KnowledgeFile)); err != nil {
		return fmt.Errorf("recognizer.knowledge_file: %w", err)
	}
	return nil
}

func validateExecution(exec domain.ExecutionSettings) error {
	if exec.RetryBackoffMS < 0 {
		return errors.New("execution.retry_backoff_ms must be >= 0")
	}
	if exec.PrivilegeCommand != "" && len(strings.Fields(exec.PrivilegeCommand)) == 0 {
		return errors.New("execution.privilege_command must name a program")
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	if history.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be >= 0")
	}
	switch strings.ToLower(history.Backend) {
	case "", domain.CacheBackendSQLite, domain.CacheBackendFile:
	default:
		return fmt.Errorf("history.backend %q is not one of sqlite, file", history.Backend)
	}
	return nil
}
