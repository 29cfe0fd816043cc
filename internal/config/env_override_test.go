package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestEnvOverrides_Store(t *testing.T) {
	t.Setenv("UMMON_DB", "/tmp/custom.db")
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	require.Equal(t, "/tmp/custom.db", cfg.Store.Path)
}

func TestEnvOverrides_LLM(t *testing.T) {
	t.Setenv("UMMON_LLM_PROVIDER", "anthropic")
	t.Setenv("UMMON_LLM_MODEL", "claude-test")
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	require.Equal(t, LLMProviderAnthropic, cfg.LLM.Provider)
	require.Equal(t, "claude-test", cfg.LLM.Model)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(os.TempDir() + "/does-not-exist-ummon.yaml")
	require.NoError(t, err)
	require.Equal(t, "./ummon.db", cfg.Store.Path)
}

func TestValidateRejectsUnknownProtocol(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Protocol = "carrier-pigeon"
	require.Error(t, cfg.Validate())
}
