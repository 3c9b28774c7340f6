package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/telemetry-shm/pkg/layout"
)

func TestSettingsWatcherReloads(t *testing.T) {
	path := writeFile(t, "settings.yaml", "esp_enabled: false\n")

	got := make(chan layout.Settings, 8)
	w, err := NewSettingsWatcher(path, func(s layout.Settings) { got <- s }, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("esp_enabled: true\nbone: 3\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-got:
			if s.ESPEnabled && s.Bone == 3 {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestSettingsWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeFile(t, "settings.yaml", "esp_enabled: false\n")

	got := make(chan layout.Settings, 8)
	w, err := NewSettingsWatcher(path, func(s layout.Settings) { got <- s }, nil)
	require.NoError(t, err)
	w.Start()

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("esp_enabled: true\n"), 0o600))

	select {
	case <-got:
		t.Fatal("reloaded for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestSettingsWatcherMissingDir(t *testing.T) {
	_, err := NewSettingsWatcher("/nonexistent/dir/settings.yaml", func(layout.Settings) {}, nil)
	assert.Error(t, err)
}
