// Package api implements the inbound HTTP surface: the Bootstrap entry
// point (/bootstrap) and the Notification Sink entry point (/notify),
// wired over a plain net/http.ServeMux since this service exposes two
// routes rather than a CLI (see DESIGN.md's "dropped teacher
// dependencies" for why a CLI framework was dropped).
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/drive-mirror/internal/ident"
	"github.com/tonimelisma/drive-mirror/internal/provider"
	"github.com/tonimelisma/drive-mirror/internal/reconcile"
	"github.com/tonimelisma/drive-mirror/internal/store"
	"github.com/tonimelisma/drive-mirror/internal/worker"
)

// identityGate is the narrow subset of gate.Gate the handlers depend on.
type identityGate interface {
	Validate(ctx context.Context) (provider.IdentityResult, error)
	Enable()
	IsEnabled() bool
}

// driveResolver is the narrow subset of provider.Client the bootstrap
// handler depends on.
type driveResolver interface {
	ResolveDefaultDrive(ctx context.Context) (ident.ID, error)
}

// subscriptionEnsurer is the narrow subset of subscription.Manager the
// bootstrap handler depends on.
type subscriptionEnsurer interface {
	EnsureLive(ctx context.Context, resource string) (*store.Subscription, error)
}

// notificationVerifier is the narrow subset of subscription.Manager the
// notify handler depends on.
type notificationVerifier interface {
	VerifyNotification(ctx context.Context, providerID, secret string) (bool, error)
}

// initialSyncer is the narrow subset of reconcile.Engine the bootstrap
// handler depends on.
type initialSyncer interface {
	PerformInitialSync(ctx context.Context, driveID ident.ID) (reconcile.Result, error)
}

// Handler bundles the Bootstrap and Notification Sink HTTP handlers.
type Handler struct {
	gate     identityGate
	drives   driveResolver
	subs     subscriptionEnsurer
	verifier notificationVerifier
	engine   initialSyncer
	queue    worker.Queue
	logger   *slog.Logger
}

// New builds a Handler over the core's components.
func New(
	gate identityGate,
	drives driveResolver,
	subs subscriptionEnsurer,
	verifier notificationVerifier,
	engine initialSyncer,
	queue worker.Queue,
	logger *slog.Logger,
) *Handler {
	return &Handler{gate: gate, drives: drives, subs: subs, verifier: verifier, engine: engine, queue: queue, logger: logger}
}

// Mux builds an http.ServeMux with both routes registered, using Go
// 1.22's method-prefixed routing patterns — idiomatic stdlib routing,
// chosen since no router library fits this service's two-route surface.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bootstrap", h.handleBootstrap)
	mux.HandleFunc("POST /notify", h.handleNotify)

	return mux
}
