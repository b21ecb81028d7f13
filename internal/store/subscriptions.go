package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func scanSubscription(row interface{ Scan(...any) error }) (*Subscription, error) {
	sub := &Subscription{}

	err := row.Scan(&sub.ProviderID, &sub.Resource, &sub.SharedSecret, &sub.Expiry, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// FindSubscriptionByResource returns the most recent subscription record
// for resource, or (nil, nil) if none exists.
func (s *Store) FindSubscriptionByResource(ctx context.Context, resource string) (*Subscription, error) {
	sub, err := scanSubscription(s.subscriptionStmts.findByResource.QueryRowContext(ctx, resource))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("store: find subscription by resource %s: %w", resource, err)
	}

	return sub, nil
}

// FindSubscriptionByProviderID returns the subscription with the given
// provider id, or (nil, nil) if none exists.
func (s *Store) FindSubscriptionByProviderID(ctx context.Context, providerID string) (*Subscription, error) {
	sub, err := scanSubscription(s.subscriptionStmts.findByProviderID.QueryRowContext(ctx, providerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("store: find subscription by provider id %s: %w", providerID, err)
	}

	return sub, nil
}

// UpsertSubscription inserts or replaces a local subscription record.
func (s *Store) UpsertSubscription(ctx context.Context, sub *Subscription) error {
	_, err := s.subscriptionStmts.upsert.ExecContext(ctx,
		sub.ProviderID, sub.Resource, sub.SharedSecret, sub.Expiry, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert subscription %s: %w", sub.ProviderID, err)
	}

	return nil
}

// UpdateSubscriptionExpiry records a renewed expiry for providerID.
func (s *Store) UpdateSubscriptionExpiry(ctx context.Context, providerID string, newExpiry time.Time) error {
	_, err := s.subscriptionStmts.updateExpiry.ExecContext(ctx, newExpiry.Unix(), providerID)
	if err != nil {
		return fmt.Errorf("store: update subscription expiry %s: %w", providerID, err)
	}

	return nil
}

// DeleteSubscription removes the local record for providerID.
func (s *Store) DeleteSubscription(ctx context.Context, providerID string) error {
	_, err := s.subscriptionStmts.deleteByID.ExecContext(ctx, providerID)
	if err != nil {
		return fmt.Errorf("store: delete subscription %s: %w", providerID, err)
	}

	return nil
}

// ListExpiredCandidates returns local subscription records whose expiry
// has already passed — candidates for SweepExpired, which additionally
// confirms the provider counterpart is gone before deleting.
func (s *Store) ListExpiredCandidates(ctx context.Context, now time.Time) ([]*Subscription, error) {
	rows, err := s.subscriptionStmts.listExpiredCandidates.QueryContext(ctx, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: list expired candidates: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription

	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan expired candidate: %w", err)
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// DeleteExpiredSubscriptions removes every local record whose expiry has
// passed, without consulting the provider. The Subscription Manager's
// SweepExpired does not use it: it deletes candidates from
// ListExpiredCandidates one at a time, only once the provider record is gone.
func (s *Store) DeleteExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.subscriptionStmts.deleteExpired.ExecContext(ctx, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("store: delete expired subscriptions: %w", err)
	}

	return result.RowsAffected()
}
