// Package logging builds the structured logger shared by the daemon and
// the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// EnvLevel supplies the level when none is configured, e.g.
// TELEMETRY_SHM_LOG_LEVEL=debug.
const EnvLevel = "TELEMETRY_SHM_LOG_LEVEL"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level (trace, debug, info, warn, error, off).
	Level string `koanf:"level"`
	// Format is text or json.
	Format string `koanf:"format"`
	// Output defaults to os.Stderr.
	Output io.Writer `koanf:"-"`
}

// DefaultConfig returns the default logger configuration. The default level
// is warn.
func DefaultConfig() Config {
	return Config{Level: "warn", Format: "text"}
}

// New creates a named logger.
func New(name string, cfg Config) hclog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            name,
		Level:           ParseLevel(cfg.Level),
		Output:          out,
		JSONFormat:      strings.EqualFold(cfg.Format, "json"),
		IncludeLocation: true,
	})
}

// ParseLevel resolves the effective level. EnvLevel is consulted only when
// no level was given. Unknown names fall back to warn.
func ParseLevel(level string) hclog.Level {
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	if strings.EqualFold(level, "none") {
		level = "off"
	}
	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return hclog.Warn
	}
	return l
}
