// Package gate implements the Credential Gate (C3): a process-wide,
// lock-free flag that enables or disables all downstream processing,
// following the same atomics discipline used elsewhere in this codebase
// (atomic counters), generalized to atomic.Bool.
package gate

import (
	"context"
	"sync/atomic"

	"github.com/tonimelisma/drive-mirror/internal/provider"
)

// Identity probe is delegated to a narrow interface so gate tests don't
// need a real provider.Client.
type identityProber interface {
	ProbeIdentity(ctx context.Context) (provider.IdentityResult, error)
}

// Gate holds the process-wide enabled flag. The zero value starts
// disabled: a restart begins in the disabled state, forcing bootstrap to
// run again.
type Gate struct {
	enabled atomic.Bool
	prober  identityProber
}

// New creates a Gate, initially disabled regardless of cfg — callers that
// want DELTA_ENABLED=true to pre-enable the gate without a bootstrap call
// should call Enable() explicitly after New (an optional durability
// convenience, never required for correctness).
func New(prober identityProber) *Gate {
	return &Gate{prober: prober}
}

// Validate delegates to the Provider Gateway's probe_identity.
func (g *Gate) Validate(ctx context.Context) (provider.IdentityResult, error) {
	return g.prober.ProbeIdentity(ctx)
}

// Enable flips the gate on. Lock-free write via atomic.Bool.
func (g *Gate) Enable() {
	g.enabled.Store(true)
}

// Disable flips the gate off. Called whenever a worker observes an
// AUTH_INVALID outcome from the gateway.
func (g *Gate) Disable() {
	g.enabled.Store(false)
}

// IsEnabled reports the current state. Lock-free read.
func (g *Gate) IsEnabled() bool {
	return g.enabled.Load()
}
