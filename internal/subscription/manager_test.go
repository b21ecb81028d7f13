package subscription

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drive-mirror/internal/provider"
	"github.com/tonimelisma/drive-mirror/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, st.Close()) })

	return st
}

type fakeGateway struct {
	created  *provider.Subscription
	getFunc  func(id string) (*provider.Subscription, error)
	renewErr error
	nextID   int
}

func (g *fakeGateway) CreateSubscription(_ context.Context, _, resource, sharedSecret string, expiry time.Time) (*provider.Subscription, error) {
	g.nextID++

	sub := &provider.Subscription{ID: "sub-created", Resource: resource, ClientState: sharedSecret, Expiry: expiry.Unix()}
	g.created = sub

	return sub, nil
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*provider.Subscription, error) {
	if g.getFunc != nil {
		return g.getFunc(id)
	}

	return &provider.Subscription{ID: id, Expiry: time.Now().Add(69 * time.Hour).Unix()}, nil
}

func (g *fakeGateway) RenewSubscription(_ context.Context, id string, newExpiry time.Time) (*provider.Subscription, error) {
	if g.renewErr != nil {
		return nil, g.renewErr
	}

	return &provider.Subscription{ID: id, Expiry: newExpiry.Unix()}, nil
}

func (g *fakeGateway) DeleteSubscription(context.Context, string) error { return nil }

func TestEnsureLive_CreatesWhenNoLocalRecord(t *testing.T) {
	st := newTestStore(t)
	gw := &fakeGateway{}
	mgr := New(st, gw, "https://hooks.example.com/notify", 32, testLogger())

	sub, err := mgr.EnsureLive(context.Background(), "drives/d1/root")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub-created", sub.ProviderID)
	assert.GreaterOrEqual(t, len(sub.SharedSecret), 32)
}

func TestEnsureLive_ReturnsExistingWhenFarFromExpiry(t *testing.T) {
	st := newTestStore(t)
	gw := &fakeGateway{}
	mgr := New(st, gw, "https://hooks.example.com/notify", 32, testLogger())
	ctx := context.Background()

	first, err := mgr.EnsureLive(ctx, "drives/d1/root")
	require.NoError(t, err)

	second, err := mgr.EnsureLive(ctx, "drives/d1/root")
	require.NoError(t, err)
	assert.Equal(t, first.ProviderID, second.ProviderID)
}

func TestEnsureLive_RenewsWhenNearExpiry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscription(ctx, &store.Subscription{
		ProviderID: "sub-old", Resource: "drives/d1/root", SharedSecret: "0123456789012345678901234567890123",
		Expiry: time.Now().Add(1 * time.Hour).Unix(),
	}))

	// The provider record is near expiry too: EnsureLive decides from it.
	gw := &fakeGateway{getFunc: func(id string) (*provider.Subscription, error) {
		return &provider.Subscription{ID: id, Expiry: time.Now().Add(1 * time.Hour).Unix()}, nil
	}}
	mgr := New(st, gw, "https://hooks.example.com/notify", 32, testLogger())

	sub, err := mgr.EnsureLive(ctx, "drives/d1/root")
	require.NoError(t, err)
	assert.Equal(t, "sub-old", sub.ProviderID)
	assert.Greater(t, sub.Expiry, time.Now().Add(60*time.Hour).Unix())
}

func TestEnsureLive_RecreatesWhenProviderRecordMissing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscription(ctx, &store.Subscription{
		ProviderID: "sub-gone", Resource: "drives/d1/root", SharedSecret: "0123456789012345678901234567890123",
		Expiry: time.Now().Add(50 * time.Hour).Unix(),
	}))

	gw := &fakeGateway{getFunc: func(string) (*provider.Subscription, error) { return nil, nil }}
	mgr := New(st, gw, "https://hooks.example.com/notify", 32, testLogger())

	sub, err := mgr.EnsureLive(ctx, "drives/d1/root")
	require.NoError(t, err)
	assert.Equal(t, "sub-created", sub.ProviderID)
}

func TestVerifyNotification_MatchesSecret(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscription(ctx, &store.Subscription{
		ProviderID: "sub-1", Resource: "drives/d1/root", SharedSecret: "correct-secret", Expiry: time.Now().Add(time.Hour).Unix(),
	}))

	mgr := New(st, &fakeGateway{}, "https://hooks.example.com/notify", 32, testLogger())

	ok, err := mgr.VerifyNotification(ctx, "sub-1", "correct-secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mgr.VerifyNotification(ctx, "sub-1", "wrong-secret")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyNotification_UnknownSubscriptionReturnsFalseNoError(t *testing.T) {
	st := newTestStore(t)
	mgr := New(st, &fakeGateway{}, "https://hooks.example.com/notify", 32, testLogger())

	ok, err := mgr.VerifyNotification(context.Background(), "unknown", "secret")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepExpired_RemovesOnlyWhenProviderRecordGone(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscription(ctx, &store.Subscription{
		ProviderID: "sub-expired-gone", Resource: "drives/d1/root", SharedSecret: "s",
		Expiry: time.Now().Add(-time.Hour).Unix(),
	}))
	require.NoError(t, st.UpsertSubscription(ctx, &store.Subscription{
		ProviderID: "sub-expired-alive", Resource: "drives/d2/root", SharedSecret: "s",
		Expiry: time.Now().Add(-time.Hour).Unix(),
	}))

	gw := &fakeGateway{getFunc: func(id string) (*provider.Subscription, error) {
		if id == "sub-expired-gone" {
			return nil, nil
		}

		return &provider.Subscription{ID: id}, nil
	}}

	mgr := New(st, gw, "https://hooks.example.com/notify", 32, testLogger())

	removed, err := mgr.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := st.FindSubscriptionByProviderID(ctx, "sub-expired-alive")
	require.NoError(t, err)
	assert.NotNil(t, remaining)

	gone, err := st.FindSubscriptionByProviderID(ctx, "sub-expired-gone")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
