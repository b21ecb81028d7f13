package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type createSubscriptionRequest struct {
	Resource        string `json:"resource"`
	NotificationURL string `json:"notification_url"`
	ClientState     string `json:"client_state"`
	ExpirationUnix  int64  `json:"expiration"`
}

type subscriptionResponse struct {
	ID             string `json:"id"`
	Resource       string `json:"resource"`
	ClientState    string `json:"client_state"`
	ExpirationUnix int64  `json:"expiration"`
}

// CreateSubscription registers a new push subscription for resource,
// targeting notificationURL, authenticated on future callbacks by
// sharedSecret, expiring at expiry.
func (c *Client) CreateSubscription(ctx context.Context, notificationURL, resource, sharedSecret string, expiry time.Time) (*Subscription, error) {
	reqBody, err := json.Marshal(createSubscriptionRequest{
		Resource:        resource,
		NotificationURL: notificationURL,
		ClientState:     sharedSecret,
		ExpirationUnix:  expiry.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("provider: encoding subscription create request: %w", err)
	}

	body, err := c.Do(ctx, "POST", "/subscriptions", strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("provider: creating subscription for %s: %w", resource, err)
	}

	var sr subscriptionResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("provider: decoding subscription create response: %w", err)
	}

	return toSubscription(sr), nil
}

// GetSubscription looks up a subscription by provider id. A 404 is
// reported as (nil, nil) — not as an error, since it is an expected
// outcome the Subscription Manager branches on.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	body, err := c.Do(ctx, "GET", "/subscriptions/"+id, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil //nolint:nilnil // absent subscription is a valid outcome, not a failure
		}

		return nil, fmt.Errorf("provider: getting subscription %s: %w", id, err)
	}

	var sr subscriptionResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("provider: decoding subscription response: %w", err)
	}

	return toSubscription(sr), nil
}

// RenewSubscription extends a subscription's expiry. A 404 is surfaced as
// a wrapped ErrNotFound so callers can detect a provider-side expiry and
// fall back to recreating the subscription.
func (c *Client) RenewSubscription(ctx context.Context, id string, newExpiry time.Time) (*Subscription, error) {
	reqBody, err := json.Marshal(struct {
		ExpirationUnix int64 `json:"expiration"`
	}{ExpirationUnix: newExpiry.Unix()})
	if err != nil {
		return nil, fmt.Errorf("provider: encoding subscription renew request: %w", err)
	}

	body, err := c.Do(ctx, "PATCH", "/subscriptions/"+id, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("provider: renewing subscription %s: %w", id, err)
	}

	var sr subscriptionResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("provider: decoding subscription renew response: %w", err)
	}

	return toSubscription(sr), nil
}

// DeleteSubscription tears down a subscription. A 404 is treated as
// success: the desired end state (no live subscription) already holds.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	_, err := c.Do(ctx, "DELETE", "/subscriptions/"+id, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("provider: deleting subscription %s: %w", id, err)
	}

	return nil
}

func toSubscription(sr subscriptionResponse) *Subscription {
	return &Subscription{
		ID:          sr.ID,
		Resource:    sr.Resource,
		Expiry:      sr.ExpirationUnix,
		ClientState: sr.ClientState,
	}
}
