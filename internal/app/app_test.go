package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secfile/internal/config"
	"secfile/internal/device"
	"secfile/internal/logging"
)

func TestNewPipeline_RoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.Workers = 2

	p, err := NewPipeline(cfg, logging.Discard())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("Hello, World!"), 0o600))

	protected, err := p.Protect(context.Background(), src)
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "My_Key.pem")
	cred, err := os.ReadFile(protected.CredentialPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(keyPath, cred, 0o600))

	recovered, err := p.Recover(context.Background(), protected.CiphertextDir, keyPath)
	require.NoError(t, err)
	got, err := os.ReadFile(recovered.File.Path)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(got))
}

func TestWorkers(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 7
	assert.Equal(t, 7, Workers(cfg, device.New(), logging.Discard()))

	cfg.Workers = 0
	assert.GreaterOrEqual(t, Workers(cfg, device.New(), logging.Discard()), 1)
}

func TestNewStore_RequiresBucket(t *testing.T) {
	cfg := config.Default()
	_, err := NewStore(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestSetup_InvalidConfig(t *testing.T) {
	t.Setenv("SECFILE_LOG_FORMAT", "xml")
	_, _, err := Setup(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestSetup_Overrides(t *testing.T) {
	cfg, log, err := Setup(filepath.Join(t.TempDir(), "missing.env"), func(c *config.Config) error {
		c.WorkDir = "/tmp/override"
		c.LogLevel = "debug"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.WorkDir)
	assert.Equal(t, "debug", log.GetLevel().String())
}
