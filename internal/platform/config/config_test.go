// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sqlrest/internal/platform/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "dbo", cfg.DefaultSchema)
	assert.Equal(t, 1433, cfg.DBPort)
	assert.Equal(t, "none", cfg.TokenMode)
	assert.Equal(t, 2*time.Second, cfg.ChangeFeedPollPeriod)
}

func TestLoad_FileLayerOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlrest.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_server = "file-host"
db_port = 1500
listen_addr = ":9090"
`), 0o600))

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "file-host", cfg.DBServer)
	assert.Equal(t, 1500, cfg.DBPort)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestLoad_EnvLayerOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlrest.toml")
	require.NoError(t, os.WriteFile(path, []byte(`db_server = "file-host"`), 0o600))

	t.Setenv("DB_SERVER", "env-host")

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.DBServer)
}

func TestLoad_FlagLayerOverridesEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlrest.toml")
	require.NoError(t, os.WriteFile(path, []byte(`db_server = "file-host"`), 0o600))

	t.Setenv("DB_SERVER", "env-host")

	cfg, err := config.Load([]string{"--config", path, "--db-server", "flag-host"})
	require.NoError(t, err)

	assert.Equal(t, "flag-host", cfg.DBServer)
}

func TestLoad_MissingConfigFileIsNotAnError(t *testing.T) {
	cfg, err := config.Load([]string{"--config", "/nonexistent/sqlrest.toml"})
	require.NoError(t, err)
	assert.Equal(t, "dbo", cfg.DefaultSchema)
}

func TestPoolConfig_ModeMapping(t *testing.T) {
	cfg, err := config.Load([]string{"--db-auth-mode", "service_principal"})
	require.NoError(t, err)

	poolCfg := cfg.PoolConfig()
	assert.Equal(t, 2, int(poolCfg.Mode)) // ModeServicePrincipal
}

func TestTokenConfig_ModeMapping(t *testing.T) {
	cfg, err := config.Load([]string{"--token-mode", "symmetric", "--token-secret", "shh"})
	require.NoError(t, err)

	tokenCfg := cfg.TokenConfig()
	assert.Equal(t, 1, int(tokenCfg.Mode)) // ModeSymmetric
	assert.Equal(t, "shh", tokenCfg.Secret)
}
