package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadForTest(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadForTest(t)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "bolt://localhost:7687", cfg.Database.URI)
	assert.Equal(t, "neo4j", cfg.Database.Username)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Second, cfg.Ingestion.Pace)
	assert.Equal(t, "default", cfg.Ingestion.GroupID)
	assert.False(t, cfg.CircuitBreaker.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://db:7687")
	t.Setenv("NEO4J_USER", "alice")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EPISODIC_GROUP_ID", "quickstart")

	cfg := loadForTest(t)

	assert.Equal(t, "bolt://db:7687", cfg.Database.URI)
	assert.Equal(t, "alice", cfg.Database.Username)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "quickstart", cfg.Ingestion.GroupID)
}

func TestValidateMissingAPIKey(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "pass",
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "platform.openai.com")
}

func TestValidateMissingDatabase(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{APIKey: "sk-test"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database uri")
	assert.Contains(t, err.Error(), "database username")
	assert.Contains(t, err.Error(), "database password")
}

func TestValidateComplete(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "pass",
		},
		LLM: LLMConfig{APIKey: "sk-test"},
	}

	assert.NoError(t, cfg.Validate())
}
