package config

import (
	"os"
	"strconv"
)

// Environment variable names for every configuration field, including
// the ambient fields a runnable service needs.
const (
	EnvBearer            = "BEARER"
	EnvClientID           = "CLIENT_ID"
	EnvTenantID           = "TENANT_ID"
	EnvStoreDSN           = "STORE_DSN"
	EnvSharedSecretFloor  = "SHARED_SECRET_FLOOR"
	EnvDeltaEnabled       = "DELTA_ENABLED"
	EnvNotifyURL          = "NOTIFY_URL"
	EnvProviderBaseURL    = "PROVIDER_BASE_URL"
	EnvListenAddr         = "LISTEN_ADDR"
	EnvQueueCapacity      = "QUEUE_CAPACITY"
	EnvWorkerConcurrency  = "WORKER_CONCURRENCY"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
)

// applyEnvOverrides mutates cfg in place with any environment variables
// that are set, applied directly since this service has no profile
// indirection to route overrides through.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv(EnvBearer); ok {
		cfg.Bearer = v
	}
	if v, ok := os.LookupEnv(EnvClientID); ok {
		cfg.ClientID = v
	}
	if v, ok := os.LookupEnv(EnvTenantID); ok {
		cfg.TenantID = v
	}
	if v, ok := os.LookupEnv(EnvStoreDSN); ok {
		cfg.StoreDSN = v
	}
	if v, ok := os.LookupEnv(EnvSharedSecretFloor); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SharedSecretFloor = n
		}
	}
	if v, ok := os.LookupEnv(EnvDeltaEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DeltaEnabled = b
		}
	}
	if v, ok := os.LookupEnv(EnvNotifyURL); ok {
		cfg.NotifyURL = v
	}
	if v, ok := os.LookupEnv(EnvProviderBaseURL); ok {
		cfg.ProviderBaseURL = v
	}
	if v, ok := os.LookupEnv(EnvListenAddr); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv(EnvQueueCapacity); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueCapacity = n
		}
	}
	if v, ok := os.LookupEnv(EnvWorkerConcurrency); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerConcurrency = n
		}
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		cfg.LogFormat = v
	}
}
