package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Webhooks)
}

func TestFromYAMLMergesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
log:
  level: debug
webhooks:
  - url: https://hooks.example.org/reports
    events: [report.status_changed]
    timeout_seconds: 3
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, 3, cfg.Webhooks[0].TimeoutSeconds)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad level":       "log: {level: loud}",
		"bad format":      "log: {format: xml}",
		"bad base path":   "server: {base_path: v0}",
		"empty addr":      `server: {addr: ""}`,
		"hook url":        "webhooks: [{events: [report.saved]}]",
		"hook timeout":    "webhooks: [{url: http://x, timeout_seconds: -1}]",
		"hook empty type": `webhooks: [{url: http://x, events: [""]}]`,
		"not yaml":        "log: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestWebhookMatches(t *testing.T) {
	all := Webhook{}
	assert.True(t, all.Matches("report.saved"))

	star := Webhook{Events: []string{"*"}}
	assert.True(t, star.Matches("goal.pruned"))

	prefix := Webhook{Events: []string{"approver.*", "report.deleted"}}
	assert.True(t, prefix.Matches("approver.restored"))
	assert.True(t, prefix.Matches("report.deleted"))
	assert.False(t, prefix.Matches("report.saved"))
	assert.False(t, prefix.Matches("approvers.added"))
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "reportline.yml"), []byte("server: {addr: ':9090'}\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}
