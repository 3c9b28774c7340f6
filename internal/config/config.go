// Package config loads daemon configuration from a YAML file and
// TELEMETRY_SHM_ environment variables, in that order of precedence over
// the built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/srediag/telemetry-shm/internal/logging"
	"github.com/srediag/telemetry-shm/internal/poller"
	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/shm"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TELEMETRY_SHM_"

// Config is the daemon configuration.
type Config struct {
	Region    Region         `koanf:"region"`
	Poll      poller.Config  `koanf:"poll"`
	Reconnect Reconnect      `koanf:"reconnect"`
	HTTP      HTTP           `koanf:"http"`
	Log       logging.Config `koanf:"log"`
	Settings  SettingsFile   `koanf:"settings"`
}

// Region locates the shared object.
type Region struct {
	Path string `koanf:"path"`
	Dir  string `koanf:"dir"`
	Name string `koanf:"name"`
	// WordBits is the producer's counter width, 32 or 64.
	WordBits int `koanf:"word_bits"`
}

// Reconnect controls how Open is retried while the producer is absent.
type Reconnect struct {
	Enabled     bool          `koanf:"enabled"`
	Initial     time.Duration `koanf:"initial"`
	MaxInterval time.Duration `koanf:"max_interval"`
	// MaxElapsed of zero retries until shutdown.
	MaxElapsed time.Duration `koanf:"max_elapsed"`
}

// HTTP configures the serve command.
type HTTP struct {
	Addr string `koanf:"addr"`
	// StaleAfter is how old the last valid snapshot may be before the
	// daemon reports not ready.
	StaleAfter time.Duration `koanf:"stale_after"`
}

// SettingsFile names a YAML file of layout.Settings pushed to the region.
type SettingsFile struct {
	File  string `koanf:"file"`
	Watch bool   `koanf:"watch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Region: Region{Dir: shm.DefaultDir, Name: layout.DefaultName, WordBits: 64},
		Poll:   poller.Config{Interval: poller.DefaultInterval, QueueSize: 256, Workers: 4},
		Reconnect: Reconnect{
			Enabled:     true,
			Initial:     100 * time.Millisecond,
			MaxInterval: 5 * time.Second,
		},
		HTTP:     HTTP{Addr: "127.0.0.1:9477", StaleAfter: time.Second},
		Log:      logging.DefaultConfig(),
		Settings: SettingsFile{Watch: true},
	}
}

// Layout returns the layout selected by WordBits.
func (r Region) Layout() (layout.Layout, error) {
	switch r.WordBits {
	case 0, 64:
		return layout.Default, nil
	case 32:
		return layout.New(layout.Word32)
	default:
		return layout.Layout{}, fmt.Errorf("config: region.word_bits must be 32 or 64, got %d", r.WordBits)
	}
}

// OpenOptions converts the region section for shm.Open.
func (r Region) OpenOptions() (shm.OpenOptions, error) {
	lay, err := r.Layout()
	if err != nil {
		return shm.OpenOptions{}, err
	}
	return shm.OpenOptions{Path: r.Path, Dir: r.Dir, Name: r.Name, Layout: lay}, nil
}

// Loader layers configuration sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithConfigFile sets the YAML file to load.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithEnvPrefix overrides EnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns Default overlaid with the file and then the environment.
func (l *Loader) Load() (Config, error) {
	cfg := Default()
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.Region.Layout(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envKey maps TELEMETRY_SHM_SECTION_SOME_KEY to section.some_key.
func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}
