package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultHasLua54Runtime(t *testing.T) {
	cfg := Default()
	require.Equal(t, Lua54, cfg.Runtime.Version)
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.emmyrc.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFileMergesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".emmyrc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"runtime":{"version":"5.1"},"strict":{"typeCall":true}}`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, Lua51, cfg.Runtime.Version)
	require.True(t, cfg.Strict.TypeCall)
}

func TestApplyEnvOverridesRuntimeVersion(t *testing.T) {
	t.Setenv("EMMYLUA_RUNTIME_VERSION", "5.2")
	t.Setenv("EMMYLUA_DIAGNOSTICS_DISABLE", "unused-local, undefined-global")
	cfg := ApplyEnvOverrides(Default(), filepath.Join(t.TempDir(), "no-such.env"))
	require.Equal(t, Lua52, cfg.Runtime.Version)
	require.Equal(t, []string{"unused-local", "undefined-global"}, cfg.Diagnostics.Disable)
}

func TestIsKnownTagBuiltinAndConfigured(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.IsKnownTag("class"))
	require.False(t, cfg.IsKnownTag("customTag"))

	cfg.Doc.KnownTags = []string{"customTag"}
	require.True(t, cfg.IsKnownTag("customTag"))
}
