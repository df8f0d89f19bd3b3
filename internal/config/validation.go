package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration after defaults and overrides.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	if err := validateBook(cfg.Book); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.MDBook.Binary) == "" {
		return fmt.Errorf("%w: mdbook.binary must not be empty", ErrInvalid)
	}
	for k := range cfg.MDBook.Env {
		if k == "" || strings.Contains(k, "=") {
			return fmt.Errorf("%w: mdbook.env key %q", ErrInvalid, k)
		}
	}
	if err := validateWatch(cfg.Watch); err != nil {
		return err
	}
	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("%w: metrics.listen: %w", ErrInvalid, err)
		}
	}
	return nil
}

func validateBook(b BookConfig) error {
	if b.Manifest == "" {
		return fmt.Errorf("%w: book.manifest must not be empty", ErrInvalid)
	}
	if filepath.IsAbs(b.StagingDir) {
		return fmt.Errorf("%w: book.staging_dir must be relative to the root: %s", ErrInvalid, b.StagingDir)
	}
	clean := filepath.Clean(b.StagingDir)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: book.staging_dir escapes the root: %s", ErrInvalid, b.StagingDir)
	}
	if clean == "." {
		return fmt.Errorf("%w: book.staging_dir must not be the root itself", ErrInvalid)
	}
	return nil
}

func validateWatch(w WatchConfig) error {
	if _, err := parseDuration(w.Debounce); err != nil {
		return fmt.Errorf("%w: watch.debounce: %w", ErrInvalid, err)
	}
	if _, err := parseDuration(w.PollInterval); err != nil {
		return fmt.Errorf("%w: watch.poll_interval: %w", ErrInvalid, err)
	}
	for _, dir := range w.Ignore {
		if dir == "" || strings.ContainsRune(dir, filepath.Separator) {
			return fmt.Errorf("%w: watch.ignore entries are directory names: %q", ErrInvalid, dir)
		}
	}
	return nil
}

// parseDuration accepts Go duration strings; empty means zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
