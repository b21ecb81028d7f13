// Package subscription implements the Subscription Manager (C4): ensuring
// exactly one live push subscription per watched resource, renewing ahead
// of expiry, and authenticating inbound notifications. The lifecycle
// shape (ensure/create/renew, a background renewal goroutine) is adapted
// from per-tenant lifecycle management down to a single process watching
// one configured resource.
package subscription

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/drive-mirror/internal/provider"
	"github.com/tonimelisma/drive-mirror/internal/store"
)

// Lifetime constants: the target subscription lifetime at
// creation/renewal, and the remaining-life threshold that triggers a
// renewal instead of leaving the subscription alone.
const (
	TargetLifetime  = 70 * time.Hour
	RenewThreshold  = 24 * time.Hour
	minSecretLength = 32
)

// gateway is the subset of provider.Client the manager needs, narrowed so
// tests can supply a fake. *provider.Client satisfies this directly.
type gateway interface {
	CreateSubscription(ctx context.Context, notificationURL, resource, sharedSecret string, expiry time.Time) (*provider.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*provider.Subscription, error)
	RenewSubscription(ctx context.Context, id string, newExpiry time.Time) (*provider.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

// Manager implements the ensure-live/handshake/verify/sweep responsibilities
// of the Subscription Manager.
type Manager struct {
	store           *store.Store
	gw              gateway
	notificationURL string
	secretFloor     int
	logger          *slog.Logger
}

// New builds a Manager. secretFloor is SHARED_SECRET_FLOOR from
// configuration, enforced as a minimum of 32.
func New(st *store.Store, gw gateway, notificationURL string, secretFloor int, logger *slog.Logger) *Manager {
	if secretFloor < minSecretLength {
		secretFloor = minSecretLength
	}

	return &Manager{store: st, gw: gw, notificationURL: notificationURL, secretFloor: secretFloor, logger: logger}
}

// EnsureLive looks up the local record, then the provider record; renews
// if near expiry, recreates if the provider record is gone, creates fresh
// if no local record exists at all.
func (m *Manager) EnsureLive(ctx context.Context, resource string) (*store.Subscription, error) {
	local, err := m.store.FindSubscriptionByResource(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("subscription: find local record for %s: %w", resource, err)
	}

	if local == nil {
		return m.create(ctx, resource)
	}

	remote, err := m.gw.GetSubscription(ctx, local.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("subscription: get provider record %s: %w", local.ProviderID, err)
	}

	if remote == nil {
		m.logger.Info("provider subscription missing, recreating",
			slog.String("resource", resource), slog.String("provider_id", local.ProviderID))

		if err := m.store.DeleteSubscription(ctx, local.ProviderID); err != nil {
			return nil, fmt.Errorf("subscription: delete stale local record: %w", err)
		}

		return m.create(ctx, resource)
	}

	remaining := time.Until(time.Unix(remote.Expiry, 0))
	if remaining > RenewThreshold {
		return local, nil
	}

	return m.renew(ctx, local)
}

func (m *Manager) create(ctx context.Context, resource string) (*store.Subscription, error) {
	secret, err := generateSharedSecret(m.secretFloor)
	if err != nil {
		return nil, fmt.Errorf("subscription: generate shared secret: %w", err)
	}

	expiry := time.Now().Add(TargetLifetime)

	created, err := m.gw.CreateSubscription(ctx, m.notificationURL, resource, secret, expiry)
	if err != nil {
		return nil, fmt.Errorf("subscription: create subscription for %s: %w", resource, err)
	}

	rec := &store.Subscription{
		ProviderID:   created.ID,
		Resource:     resource,
		SharedSecret: secret,
		Expiry:       expiry.Unix(),
		CreatedAt:    time.Now().UnixNano(),
	}

	if err := m.store.UpsertSubscription(ctx, rec); err != nil {
		return nil, fmt.Errorf("subscription: persist new record: %w", err)
	}

	m.logger.Info("created subscription", slog.String("resource", resource), slog.String("provider_id", rec.ProviderID))

	return rec, nil
}

func (m *Manager) renew(ctx context.Context, local *store.Subscription) (*store.Subscription, error) {
	newExpiry := time.Now().Add(TargetLifetime)

	renewed, err := m.gw.RenewSubscription(ctx, local.ProviderID, newExpiry)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			if delErr := m.store.DeleteSubscription(ctx, local.ProviderID); delErr != nil {
				return nil, fmt.Errorf("subscription: delete record before recreate: %w", delErr)
			}

			return m.create(ctx, local.Resource)
		}

		return nil, fmt.Errorf("subscription: renew %s: %w", local.ProviderID, err)
	}

	if err := m.store.UpdateSubscriptionExpiry(ctx, renewed.ID, newExpiry); err != nil {
		return nil, fmt.Errorf("subscription: persist renewed expiry: %w", err)
	}

	local.Expiry = newExpiry.Unix()

	m.logger.Info("renewed subscription", slog.String("provider_id", local.ProviderID))

	return local, nil
}

// VerifyNotification compares the shared secret on an inbound notification
// byte-for-byte against the locally stored secret for providerID. Returns
// false (never an error) for an unknown subscription id — the
// notification is simply dropped.
func (m *Manager) VerifyNotification(ctx context.Context, providerID, secret string) (bool, error) {
	sub, err := m.store.FindSubscriptionByProviderID(ctx, providerID)
	if err != nil {
		return false, fmt.Errorf("subscription: lookup %s: %w", providerID, err)
	}

	if sub == nil {
		return false, nil
	}

	return subtle.ConstantTimeCompare([]byte(sub.SharedSecret), []byte(secret)) == 1, nil
}

// SweepExpired removes local records whose expiry is past AND whose
// provider counterpart no longer exists.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	candidates, err := m.store.ListExpiredCandidates(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("subscription: list expired candidates: %w", err)
	}

	removed := 0

	for _, sub := range candidates {
		remote, err := m.gw.GetSubscription(ctx, sub.ProviderID)
		if err != nil {
			m.logger.Warn("sweep: checking provider record failed, skipping",
				slog.String("provider_id", sub.ProviderID), slog.Any("error", err))

			continue
		}

		if remote != nil {
			continue
		}

		if err := m.store.DeleteSubscription(ctx, sub.ProviderID); err != nil {
			return removed, fmt.Errorf("subscription: delete swept record %s: %w", sub.ProviderID, err)
		}

		removed++
	}

	return removed, nil
}

// RunRenewalLoop periodically calls EnsureLive for resource and
// SweepExpired until ctx is cancelled. The tick interval is half the
// renewal threshold, floored at one minute.
func (m *Manager) RunRenewalLoop(ctx context.Context, resource string) {
	interval := RenewThreshold / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.EnsureLive(ctx, resource); err != nil {
				m.logger.Error("renewal loop: ensure live failed", slog.String("resource", resource), slog.Any("error", err))
			}

			if removed, err := m.SweepExpired(ctx); err != nil {
				m.logger.Error("renewal loop: sweep failed", slog.Any("error", err))
			} else if removed > 0 {
				m.logger.Info("swept expired subscriptions", slog.Int("removed", removed))
			}
		}
	}
}

// generateSharedSecret returns a cryptographically random hex string at
// least floor characters long (at least 32 characters, generated at
// creation).
func generateSharedSecret(floor int) (string, error) {
	byteLen := (floor + 1) / 2 // hex doubles byte length; round up to satisfy the floor

	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
