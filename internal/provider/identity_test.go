package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeIdentity_Success_PrefersMailOverPrincipalName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		fmt.Fprint(w, `{"id":"u1","mail":"alice@example.com","user_principal_name":"alice@tenant.onmicrosoft.com"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	result, err := c.ProbeIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Identity)
	assert.Equal(t, "u1", result.Identity.UserID)
	assert.Equal(t, "alice@example.com", result.Identity.PrincipalName)
	assert.Empty(t, result.Reason)
}

func TestProbeIdentity_FallsBackToPrincipalNameWhenMailEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"u1","user_principal_name":"alice@tenant.onmicrosoft.com"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	result, err := c.ProbeIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice@tenant.onmicrosoft.com", result.Identity.PrincipalName)
}

func TestProbeIdentity_401MapsToExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	result, err := c.ProbeIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Identity)
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestProbeIdentity_403MapsToForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	result, err := c.ProbeIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonForbidden, result.Reason)
}

func TestProbeIdentity_TransportFailureMapsToTransport(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0") // nothing listening

	result, err := c.ProbeIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonTransport, result.Reason)
}

func TestResolveDefaultDrive_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/drive", r.URL.Path)
		fmt.Fprint(w, `{"id":"Drive-ABC"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	driveID, err := c.ResolveDefaultDrive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "drive-abc", driveID.String())
}
