package creatorup

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	t.Setenv("CREATORUP_API_URL", serverURL)
	t.Setenv("DIGIUP_API_URL", serverURL)
	t.Setenv("WEBHOOK_SECRET", "test-secret")
	return NewClient()
}

func TestPushUserProfileHeaders(t *testing.T) {
	var gotPath, gotAuth, gotSource, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotSource = r.Header.Get("X-DigiUp-Source")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"creatorup_user_id":"cu-1"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.PushUserProfile(context.Background(), map[string]interface{}{"digiup_user_id": 1}, "user-token")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/digiup/sync-user", gotPath)
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "digiup-api", gotSource)
	assert.NotEmpty(t, gotRequestID, "every push carries a correlation id")
	assert.Equal(t, "cu-1", result["creatorup_user_id"])
}

func TestPushUsageUpdateIsSigned(t *testing.T) {
	var gotSig, gotSource string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotSource = r.Header.Get("X-CreatorUp-Source")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.PushUsageUpdate(context.Background(), map[string]interface{}{"batch_name": "b1"})
	require.NoError(t, err)

	assert.Equal(t, "creatorup-api", gotSource)
	// The signature must verify against the exact body that was sent.
	assert.True(t, VerifySignature(gotBody, gotSig, "test-secret"))
}

func TestClientNon2xxReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"duplicate"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.VerifyAccess(context.Background(), "tok")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.JSONEq(t, `{"error":"duplicate"}`, apiErr.Body)
}

func TestCheckFeatureAccessPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"has_access": true})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.CheckFeatureAccess(context.Background(), "tok", "advanced_editing")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/membership/feature/advanced_editing/access", gotPath)
	assert.Equal(t, true, result["has_access"])
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	assert.True(t, client.HealthCheck(context.Background()))

	healthy = false
	assert.False(t, client.HealthCheck(context.Background()))
}

func TestHealthCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(t, srv.URL)
	assert.False(t, client.HealthCheck(context.Background()))
}
