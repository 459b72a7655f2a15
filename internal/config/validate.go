package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedLevels is the set of valid log levels.
var recognizedLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var recognizedCardExts = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// Validate checks a Config for semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if !recognizedLevels[cfg.Log.Level] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unrecognized level %q", cfg.Log.Level),
		})
	}

	if _, port, err := net.SplitHostPort(cfg.Server.Addr); err != nil || port == "" {
		errs = append(errs, ValidationError{
			Field:   "server.addr",
			Message: fmt.Sprintf("invalid listen address %q", cfg.Server.Addr),
		})
	}

	if dsn := cfg.DB.DSN; strings.Contains(dsn, "://") {
		scheme := dsn[:strings.Index(dsn, "://")]
		if scheme != "postgres" && scheme != "postgresql" {
			errs = append(errs, ValidationError{
				Field:   "db.dsn",
				Message: fmt.Sprintf("unsupported scheme %q (use a SQLite path or postgres://)", scheme),
			})
		}
	}

	if c := cfg.Defaults.Card; c != "" && !recognizedCardExts[strings.ToLower(filepath.Ext(c))] {
		errs = append(errs, ValidationError{
			Field:   "defaults.card",
			Message: fmt.Sprintf("card %q must be a .json, .yaml or .yml file", c),
		})
	}

	return errs
}
