package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSubscription_SendsExpectedFieldsAndDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscriptions", r.URL.Path)
		fmt.Fprint(w, `{"id":"sub-1","resource":"drives/d1/root","client_state":"secret","expiration":1234567}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	sub, err := c.CreateSubscription(context.Background(), "https://hooks.example.com", "drives/d1/root", "secret", time.Unix(1234567, 0))
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, "drives/d1/root", sub.Resource)
	assert.Equal(t, int64(1234567), sub.Expiry)
}

func TestGetSubscription_404ReturnsNilNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	sub, err := c.GetSubscription(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestGetSubscription_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub-1", r.URL.Path)
		fmt.Fprint(w, `{"id":"sub-1","resource":"drives/d1/root"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	sub, err := c.GetSubscription(context.Background(), "sub-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub-1", sub.ID)
}

func TestRenewSubscription_404WrapsErrNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.RenewSubscription(context.Background(), "sub-1", time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSubscription_404TreatedAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.DeleteSubscription(context.Background(), "sub-1")
	require.NoError(t, err)
}

func TestDeleteSubscription_OtherErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.DeleteSubscription(context.Background(), "sub-1")
	require.Error(t, err)
}
