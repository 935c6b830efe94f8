package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("database_url", "postgres://localhost:5432/backbone")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "basic", cfg.PIIRedactionMode)
	assert.Equal(t, "8080", cfg.HTTPPort)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("database_url", "")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidRedactionMode(t *testing.T) {
	t.Setenv("database_url", "postgres://localhost:5432/backbone")
	t.Setenv("pii_redaction_mode", "maximum")

	_, err := Load("")
	assert.Error(t, err)
}
