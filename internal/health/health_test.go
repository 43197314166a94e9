package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nadzzz/nova/internal/message"
)

type stubBackend struct {
	status message.BackendStatus
}

func (b *stubBackend) Status() message.BackendStatus { return b.status }

func (b *stubBackend) Refresh(ctx context.Context) bool { return b.status.Online }

func get(t *testing.T, url string) (int, statusResponse) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthz_Readiness(t *testing.T) {
	s := New(0, 0, &stubBackend{status: message.BackendStatus{URL: "http://backend", Online: true}}, time.Minute)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	code, body := get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body.Status)

	s.SetReady(true)

	code, body = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Nil(t, body.Backend)

	code, body = get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, body.Backend)
	assert.Equal(t, "http://backend", body.Backend.URL)
	assert.True(t, body.Backend.Online)
}

func TestGRPCHealth(t *testing.T) {
	s := New(0, 0, nil, time.Minute)
	hs := s.HealthServer()
	ctx := context.Background()

	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ""})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	s.SetReady(true)
	s.UpdateRemote(true)

	resp, err = hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ""})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	resp, err = hs.Check(ctx, &healthpb.HealthCheckRequest{Service: RemoteService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	s.UpdateRemote(false)
	resp, err = hs.Check(ctx, &healthpb.HealthCheckRequest{Service: RemoteService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
