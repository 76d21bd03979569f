package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"app": {"name": "bot"}}`))
	require.NoError(t, err)

	assert.Equal(t, "bot", cfg.App.Name)
	assert.Equal(t, ".", cfg.App.Workspace)
	assert.Equal(t, "stepwright.db", cfg.Memory.Path)
	assert.Equal(t, "explain", cfg.Interpreter.FallbackTool)
	assert.Equal(t, []string{"push"}, cfg.Governance.DenyActions["git"])
	assert.True(t, cfg.OfferTools())
	_, ok := cfg.GetTelegramConfig()
	assert.False(t, ok)
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"app": {"name": "bot", "workspace": "/src"},
		"gateways": {"telegram": {"token": "t", "enabled": true, "allowed_chats": [42]}},
		"providers": {
			"openrouter": {"api_key": "k2", "model": "m2", "enabled": true},
			"openai": {"api_key": "k1", "model": "m1", "enabled": true}
		},
		"memory": {"type": "sqlite", "path": "/tmp/s.db"},
		"interpreter": {
			"schema_path": "tools.yaml",
			"watch_schema": true,
			"reasoning_tags": [["<scratch>", "</scratch>"]],
			"summary_step": true,
			"fallback_tool": "search",
			"offer_tools": false
		},
		"governance": {"deny_tools": ["git"]}
	}`))
	require.NoError(t, err)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "m1", p.Model)

	tg, ok := cfg.GetTelegramConfig()
	require.True(t, ok)
	assert.Equal(t, []int64{42}, tg.AllowedChats)

	assert.Equal(t, "tools.yaml", cfg.Interpreter.SchemaPath)
	assert.True(t, cfg.Interpreter.WatchSchema)
	assert.Equal(t, [][2]string{{"<scratch>", "</scratch>"}}, cfg.Interpreter.ReasoningTags)
	assert.True(t, cfg.Interpreter.SummaryStep)
	assert.Equal(t, "search", cfg.Interpreter.FallbackTool)
	assert.False(t, cfg.OfferTools())
	assert.Equal(t, []string{"git"}, cfg.Governance.DenyTools)
	// maps merge with the defaults
	assert.Equal(t, []string{"push"}, cfg.Governance.DenyActions["git"])
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to open config file")

	_, err = Load(writeConfig(t, `{"app": `))
	assert.ErrorContains(t, err, "failed to decode")

	_, err = Load(writeConfig(t, `{"interpeter": {}}`))
	assert.ErrorContains(t, err, "unknown field")

	_, err = Load(writeConfig(t, `{"interpreter": {"reasoning_tags": [["<x>", ""]]}}`))
	assert.ErrorContains(t, err, "reasoning_tags[0]")
}
