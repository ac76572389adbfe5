package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/env"
)

func TestLoadReadsEnvironment(t *testing.T) {
	env.Env = map[string]string{
		"CAPPTA_API_URL":   "https://cappta.test/",
		"PIPELINE_WORKERS": "5",
		"S3_ACCESS_KEY_ID": "key",
	}
	t.Cleanup(func() { env.Env = nil })

	cfg := Load()
	assert.Equal(t, "https://cappta.test", cfg.Cappta.BaseURL)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, 8, cfg.Pipeline.FanOut)
	assert.False(t, cfg.StorageEnabled())
}

func TestValidateListsAllMissingKeys(t *testing.T) {
	cfg := &Config{
		Database:         DatabaseConfig{User: "tricket", Name: "tricket"},
		EncryptionSecret: "secret",
	}

	err := cfg.Validate()
	require.Error(t, err)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindConfiguration, appErr.Kind)
	assert.Equal(t, []string{"CAPPTA_RESELLER_DOCUMENT", "AUTH_JWT_SECRET", "INTERNAL_SERVICE_KEY"}, appErr.Fields)
}
