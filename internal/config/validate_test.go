package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Bearer = "a-bearer-token"
	cfg.ClientID = "11111111-1111-1111-1111-111111111111"
	cfg.TenantID = "22222222-2222-2222-2222-222222222222"
	cfg.NotifyURL = "https://hooks.example.com/notify"
	cfg.ProviderBaseURL = "https://api.example.com/v1"

	return cfg
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_MissingBearer(t *testing.T) {
	cfg := validConfig()
	cfg.Bearer = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer")
}

func TestValidate_ClientIDNotGUIDShaped(t *testing.T) {
	cfg := validConfig()
	cfg.ClientID = "not-a-guid"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id")
}

func TestValidate_SharedSecretFloorBelowMinimum(t *testing.T) {
	cfg := validConfig()
	cfg.SharedSecretFloor = 16

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared_secret_floor")
}

func TestValidate_NotifyURLMustBeHTTPS(t *testing.T) {
	cfg := validConfig()
	cfg.NotifyURL = "http://hooks.example.com/notify"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify_url")
}

func TestValidate_AccumulatesMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Bearer = ""
	cfg.StoreDSN = ""
	cfg.QueueCapacity = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer")
	assert.Contains(t, err.Error(), "store_dsn")
	assert.Contains(t, err.Error(), "queue_capacity")
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}
