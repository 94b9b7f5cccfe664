package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.State.BackupCount)
	assert.InDelta(t, 0.6, cfg.Router.ConfidenceThreshold, 1e-9)
	assert.Contains(t, cfg.Router.ContinuationPhrases, "continue")
	assert.Equal(t, []string{"scenes", "characters", "notes"}, cfg.Session.ScaffoldDirs)
	assert.Contains(t, cfg.Character.StableSections, "voice")
	assert.NotContains(t, cfg.Character.StableSections, "session_log")
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "state:\n  backup_count: 5\nrouter:\n  confidence_threshold: 0.75\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.State.BackupCount)
	assert.InDelta(t, 0.75, cfg.Router.ConfidenceThreshold, 1e-9)
	// Untouched sections keep defaults.
	assert.Equal(t, Default().Session.ScaffoldDirs, cfg.Session.ScaffoldDirs)
	assert.Equal(t, Default().Character.StableSections, cfg.Character.StableSections)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeBackfillsZeroedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "state:\n  backup_count: 0\nsession:\n  scene_dir: \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.State.BackupCount)
	assert.Equal(t, "scenes", cfg.Session.SceneDir)
}
