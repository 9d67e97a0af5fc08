package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cybertrace")
	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.yaml"), s.Path())
	assert.FileExists(t, s.Path())
	assert.Equal(t, DefaultServerURL, s.ServerURL())
	assert.False(t, s.IsLoggedIn())
}

func TestSaveAuth_Persists(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	s.SetServerURL("http://ops.internal:9000/")
	require.NoError(t, s.SaveAuth("ops@example.com", "at", "rt"))
	assert.True(t, s.IsLoggedIn())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://ops.internal:9000", reloaded.ServerURL())
	assert.Equal(t, "ops@example.com", reloaded.Email())
	assert.Equal(t, "at", reloaded.AccessToken())
	assert.Equal(t, "rt", reloaded.RefreshToken())

	require.NoError(t, reloaded.SaveAccessToken("at2"))
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "at2", again.AccessToken())
	assert.Equal(t, "rt", again.RefreshToken())

	require.NoError(t, again.Clear())
	cleared, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cleared.IsLoggedIn())
	assert.Empty(t, cleared.Email())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CYBERTRACE_SERVER_URL", "http://from-env:8080")
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8080", s.ServerURL())
}

func TestLoad_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [oops"), 0o600))
	_, err := Load(dir)
	assert.Error(t, err)
}
