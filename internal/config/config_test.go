package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "bbr", cfg.Network.CongestionControl)
	assert.Equal(t, "fq", cfg.Network.Qdisc)
	assert.True(t, cfg.Network.EnableMPTCP)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.False(t, cfg.SSH.PasswordAuth)
	assert.Equal(t, "prohibit-password", cfg.SSH.PermitRootLogin)
	assert.Equal(t, 50, cfg.ZRAM.Percent)
	assert.Equal(t, "zstd", cfg.ZRAM.Algorithm)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, cfg.DNS.Upstreams)
	assert.Equal(t, "127.0.0.1", cfg.DNS.Listen)
	assert.Equal(t, "chrony", cfg.TimeSync.Service)
	assert.NotEmpty(t, cfg.Record.Path)
	assert.NotEmpty(t, cfg.History.Path)
	assert.Equal(t, "127.0.0.1:8677", cfg.Server.Listen)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	toml := `
[ssh]
port = 2222
password_auth = true

[network]
congestion_control = "cubic"

[dns]
upstreams = ["9.9.9.9"]
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.True(t, cfg.SSH.PasswordAuth)
	assert.Equal(t, "cubic", cfg.Network.CongestionControl)
	assert.Equal(t, []string{"9.9.9.9"}, cfg.DNS.Upstreams)

	// untouched sections keep their defaults
	assert.Equal(t, "fq", cfg.Network.Qdisc)
	assert.Equal(t, 50, cfg.ZRAM.Percent)
	assert.Equal(t, "ssh", cfg.SSH.Service)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ssh\nport="), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
