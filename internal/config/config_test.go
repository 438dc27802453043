package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"taskdeck/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "127.0.0.1:8700", cfg.Server.Addr)
	require.Equal(t, "/v1", cfg.Server.BasePath)
	require.False(t, cfg.Auth.DevLogin)
	require.Equal(t, 480, cfg.TokenTTLMinutesOrDefault())
	require.Equal(t, 10, cfg.RecentWindowOrDefault())
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "/v1", cfg.Server.BasePath)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	data := []byte("server:\n  addr: 0.0.0.0:9000\nauth:\n  dev_login: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "taskdeck.yml"), data, 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	require.True(t, cfg.Auth.DevLogin)
	// Unset keys keep their defaults.
	require.Equal(t, "/v1", cfg.Server.BasePath)
}

func TestValidate(t *testing.T) {
	_, err := config.FromYAML([]byte("server:\n  addr: \"\"\n"))
	require.Error(t, err)
	_, err = config.FromYAML([]byte("dashboard:\n  recent_window: -1\n"))
	require.Error(t, err)
}
