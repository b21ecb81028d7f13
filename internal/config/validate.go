package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

const minSharedSecretFloor = 32

// Validate checks every configuration field and accumulates all errors
// found via errors.Join, rather than stopping at the first one, so an
// operator sees a complete report in one pass.
func Validate(cfg Config) error {
	var errs []error

	if cfg.Bearer == "" {
		errs = append(errs, errors.New("bearer: must not be empty"))
	}

	if cfg.ClientID != "" {
		if _, err := uuid.Parse(cfg.ClientID); err != nil {
			errs = append(errs, fmt.Errorf("client_id: not GUID-shaped: %w", err))
		}
	}

	if cfg.TenantID != "" {
		if _, err := uuid.Parse(cfg.TenantID); err != nil {
			errs = append(errs, fmt.Errorf("tenant_id: not GUID-shaped: %w", err))
		}
	}

	if cfg.StoreDSN == "" {
		errs = append(errs, errors.New("store_dsn: must not be empty"))
	}

	if cfg.SharedSecretFloor < minSharedSecretFloor {
		errs = append(errs, fmt.Errorf("shared_secret_floor: must be >= %d, got %d", minSharedSecretFloor, cfg.SharedSecretFloor))
	}

	if cfg.NotifyURL == "" {
		errs = append(errs, errors.New("notify_url: must not be empty"))
	} else if u, err := url.Parse(cfg.NotifyURL); err != nil {
		errs = append(errs, fmt.Errorf("notify_url: %w", err))
	} else if u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("notify_url: must be https, got %q", u.Scheme))
	}

	if cfg.ProviderBaseURL == "" {
		errs = append(errs, errors.New("provider_base_url: must not be empty"))
	}

	if cfg.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr: must not be empty"))
	}

	if cfg.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("queue_capacity: must be > 0, got %d", cfg.QueueCapacity))
	}

	if cfg.WorkerConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker_concurrency: must be > 0, got %d", cfg.WorkerConcurrency))
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format: must be %q or %q, got %q", "json", "text", cfg.LogFormat))
	}

	return errors.Join(errs...)
}
