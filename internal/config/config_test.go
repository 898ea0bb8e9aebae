package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "testdata/does-not-exist.toml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lawassist", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "BLOCK_NONE", cfg.LLM.SafetyThreshold)
	assert.Equal(t, "legal_corpus", cfg.Milvus.Collection)
	assert.Equal(t, 768, cfg.Milvus.Dimension)
	assert.Equal(t, 4000, cfg.MySQL.Port)
	assert.Equal(t, 20, cfg.RAG.TopK)
	assert.Equal(t, 4000, cfg.RAG.DocumentCharLimit)
	assert.True(t, cfg.RAG.RewriteQuery)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "testdata/does-not-exist.toml")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LLM_SAFETY_THRESHOLD", "BLOCK_MEDIUM_AND_ABOVE")
	t.Setenv("MILVUS_ADDR", "milvus:19530")
	t.Setenv("RAG_TOP_K", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "BLOCK_MEDIUM_AND_ABOVE", cfg.LLM.SafetyThreshold)
	assert.Equal(t, "milvus:19530", cfg.Milvus.Address)
	assert.Equal(t, 5, cfg.RAG.TopK)
}

func TestLoadRewriteQueryOverride(t *testing.T) {
	t.Setenv("CONFIG_FILE", "testdata/does-not-exist.toml")
	t.Setenv("RAG_REWRITE_QUERY", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.RAG.RewriteQuery)
}

func TestLoadInvalidBoolFallsBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "testdata/does-not-exist.toml")
	t.Setenv("RAG_REWRITE_QUERY", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RAG.RewriteQuery)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "testdata/does-not-exist.toml")
	t.Setenv("APP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
}

func TestHTTPAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.App.Host = "127.0.0.1"
	cfg.App.Port = 8888
	assert.Equal(t, "127.0.0.1:8888", cfg.HTTPAddr())
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.User = "root"
	cfg.MySQL.Password = "pw"
	cfg.MySQL.Host = "tidb"
	cfg.MySQL.Port = 4000
	cfg.MySQL.DB = "lawassist"
	cfg.MySQL.Params = "parseTime=true"

	assert.Equal(t, "root:pw@tcp(tidb:4000)/lawassist?parseTime=true", cfg.MySQLDSN())
}
