package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv("ALIDRIVE_CONFIG", "/custom/config.toml")
	t.Setenv("ALIDRIVE_ACCOUNT", "work")
	t.Setenv("ALIDRIVE_REFRESH_TOKEN", "rt-123")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "work", overrides.Account)
	assert.Equal(t, "rt-123", overrides.RefreshToken)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv("ALIDRIVE_CONFIG", "")
	t.Setenv("ALIDRIVE_ACCOUNT", "")
	t.Setenv("ALIDRIVE_REFRESH_TOKEN", "")

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.Account)
	assert.Empty(t, overrides.RefreshToken)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "ALIDRIVE_CONFIG", EnvConfig)
	assert.Equal(t, "ALIDRIVE_ACCOUNT", EnvAccount)
	assert.Equal(t, "ALIDRIVE_REFRESH_TOKEN", EnvRefreshToken)
	assert.Equal(t, "ALIDRIVE_DATA_DIR", EnvDataDir)
}
