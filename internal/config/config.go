// Package config implements TOML-file-plus-environment-variable
// configuration loading and validation for the drive mirror service: an
// optional TOML file layer (load.go), environment overrides (env.go),
// and accumulated validation via errors.Join (validate.go) — no
// CLI-flag layer and no multi-drive indirection, since this service
// manages one drive per process.
package config

// Config is the fully resolved process configuration: the core bearer,
// store, subscription, and provider settings plus the ambient concerns
// (listen address, queue/worker sizing, logging) a runnable service
// needs.
type Config struct {
	// Bearer credential fields.
	Bearer   string `toml:"bearer"`
	ClientID string `toml:"client_id"`
	TenantID string `toml:"tenant_id"`

	// State store.
	StoreDSN string `toml:"store_dsn"`

	// Subscription Manager.
	SharedSecretFloor int `toml:"shared_secret_floor"`
	NotifyURL         string `toml:"notify_url"`

	// Credential Gate initial state.
	DeltaEnabled bool `toml:"delta_enabled"`

	// Provider Gateway transport.
	ProviderBaseURL string `toml:"provider_base_url"`

	// Ambient service concerns.
	ListenAddr        string `toml:"listen_addr"`
	QueueCapacity     int    `toml:"queue_capacity"`
	WorkerConcurrency int    `toml:"worker_concurrency"`
	LogLevel          string `toml:"log_level"`
	LogFormat         string `toml:"log_format"`
}
