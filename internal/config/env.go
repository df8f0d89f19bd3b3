package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the configuration file.
const (
	EnvMDBookBinary = "BOOKSTAGE_MDBOOK_BIN"
	EnvRoot         = "BOOKSTAGE_ROOT"
	EnvStrictPaths  = "BOOKSTAGE_STRICT_PATHS"
	EnvLogLevel     = "BOOKSTAGE_LOG_LEVEL"
)

// envFiles are loaded in order; variables already set are never overwritten,
// so .env.local takes precedence over .env.
var envFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads the .env files in the working directory and returns the
// ones that were found.
func LoadEnvFiles() []string {
	var loaded []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s couldn't be loaded: %v\n", f, err)
			continue
		}
		loaded = append(loaded, f)
	}
	return loaded
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvMDBookBinary); v != "" {
		cfg.MDBook.Binary = v
	}
	if v := os.Getenv(EnvRoot); v != "" {
		cfg.Book.Root = v
	}
	if v := os.Getenv(EnvStrictPaths); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStrictPaths, err)
		}
		cfg.Book.StrictPaths = strict
	}
	return nil
}
