package healthcheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/internal/config"
)

func component(t *testing.T, r *HealthCheckResult, name string) ComponentStatus {
	t.Helper()
	for _, c := range r.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %s missing", name)
	return ComponentStatus{}
}

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(context.Background(), nil, "", "")
	assert.Error(t, err)
}

func TestCheckHealthy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CachePath = filepath.Join(t.TempDir(), "cache.msgpack")
	cfg.Features = []string{"ALL"}

	result, err := Check(context.Background(), cfg, "", "")
	require.NoError(t, err)
	assert.True(t, result.Healthy())
	assert.Equal(t, StatusReady, component(t, result, "config").Status)
	assert.Equal(t, StatusReady, component(t, result, "cache").Status)
	assert.Contains(t, component(t, result, "cache").Detail, "(0 entries)")
	assert.Equal(t, StatusReady, component(t, result, "pipeline").Status)
}

func TestCheckReportsFailures(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CachePath = filepath.Join(t.TempDir(), "cache.msgpack")
	require.NoError(t, os.WriteFile(cfg.CachePath, []byte("not msgpack"), 0644))
	cfg.LogLevel = "loud"

	result, err := Check(context.Background(), cfg, "", "")
	require.NoError(t, err)
	assert.False(t, result.Healthy())
	assert.Equal(t, StatusError, component(t, result, "config").Status)
	assert.Equal(t, StatusError, component(t, result, "cache").Status)
}

func TestCheckPipelineUnknownFeature(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CachePath = ""
	cfg.Features = []string{"TELEPORT"}

	result, err := Check(context.Background(), cfg, "", "")
	require.NoError(t, err)
	assert.False(t, result.Healthy())
	assert.Equal(t, StatusError, component(t, result, "config").Status)
	pipeline := component(t, result, "pipeline")
	assert.Equal(t, StatusError, pipeline.Status)
	assert.Contains(t, pipeline.Error, "TELEPORT")
}

func TestCheckCacheDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CachePath = ""
	result, err := Check(context.Background(), cfg, "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, component(t, result, "cache").Status)
	assert.True(t, result.Healthy())
}

func TestScopeFromPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, "", scopeFromPath(""))
	assert.Equal(t, "global", scopeFromPath(filepath.Join(home, ".gmalt", "config.yaml")))
	assert.Equal(t, "project", scopeFromPath(filepath.Join(".gmalt", "config.yaml")))
}

func TestEffectiveConfigPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	assert.Equal(t, "", EffectiveConfigPath())

	require.NoError(t, config.DefaultConfig().Save(config.GlobalConfigFilePath()))
	assert.Equal(t, config.GlobalConfigFilePath(), EffectiveConfigPath())

	require.NoError(t, config.DefaultConfig().Save(config.ProjectConfigFilePath()))
	assert.Equal(t, config.ProjectConfigFilePath(), EffectiveConfigPath())
}
