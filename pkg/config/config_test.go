package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "bolt://localhost:7687", cfg.GraphURI)
	assert.Equal(t, 10, cfg.RetrievalLimit)
	assert.Equal(t, 15, cfg.HistoryLimit)
	assert.Equal(t, 2, cfg.HopLimit)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("RETRIEVAL_LIMIT", "25")
	t.Setenv("HOP_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 25, cfg.RetrievalLimit)
	assert.Equal(t, 3, cfg.HopLimit)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("HISTORY_LIMIT", "plenty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.HistoryLimit)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		GraphURI:       "bolt://localhost:7687",
		GraphUser:      "neo4j",
		GraphPassword:  "password",
		LLMBaseURL:     "http://localhost:4000",
		ModelID:        "some-model",
		RetrievalLimit: 10,
		HistoryLimit:   15,
		HopLimit:       2,
	}
	require.NoError(t, cfg.Validate())

	cfg.GraphURI = ""
	assert.Error(t, cfg.Validate())

	cfg.GraphURI = "bolt://localhost:7687"
	cfg.HopLimit = 0
	assert.Error(t, cfg.Validate())
}
