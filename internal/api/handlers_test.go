package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raidwatch/raidwatch/internal/alerts"
	"github.com/raidwatch/raidwatch/internal/config"
	"github.com/raidwatch/raidwatch/internal/models"
	"github.com/raidwatch/raidwatch/internal/monitoring"
	"github.com/raidwatch/raidwatch/internal/redfish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	err error
}

func (s *stubFetcher) FetchInventory(ctx context.Context) (*redfish.RawInventory, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &redfish.RawInventory{CollectedAt: time.Now()}, nil
}

type testEnv struct {
	handler      http.Handler
	fetcher      *stubFetcher
	monitor      *monitoring.Monitor
	alertManager *alerts.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		IDRACHost:               "192.168.1.100",
		ServerName:              "lab-server",
		PollInterval:            time.Minute,
		AlertRetention:          100,
		PredictiveLifeThreshold: 10,
		ListenAddr:              ":0",
	}
	fetcher := &stubFetcher{}
	alertManager := alerts.NewManager(cfg.AlertRetention, cfg.PredictiveLifeThreshold)
	monitor := monitoring.New(cfg, fetcher, alertManager)

	return &testEnv{
		handler:      NewRouter(cfg, monitor, alertManager, nil),
		fetcher:      fetcher,
		monitor:      monitor,
		alertManager: alertManager,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestServerStatusBeforeFirstPoll(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/server/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, models.StatusDisconnected, snapshot.ConnectionStatus)
	assert.Equal(t, "lab-server", snapshot.ServerName)
	assert.NotNil(t, snapshot.PhysicalDisks, "collections serialize as [], not null")
}

func TestServerStatusMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/server/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/server/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, models.StatusConnected, snapshot.ConnectionStatus)
}

func TestRefreshFailureReturnsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.err = errors.New("controller unreachable")

	rec := env.do(t, http.MethodPost, "/api/v1/server/refresh")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Error    string           `json:"error"`
		Snapshot *models.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "controller unreachable")
	require.NotNil(t, body.Snapshot)
	assert.Equal(t, models.StatusError, body.Snapshot.ConnectionStatus)

	// The failed cycle is visible on subsequent status reads too.
	rec = env.do(t, http.MethodGet, "/api/v1/server/status")
	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, models.StatusError, snapshot.ConnectionStatus)
	assert.NotEmpty(t, snapshot.LastError)
}

func TestAlertsListAndAcknowledge(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Alerts []models.SystemAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Empty(t, listing.Alerts)

	// A failed cycle raises a connectivity alert.
	env.fetcher.err = errors.New("boom")
	env.do(t, http.MethodPost, "/api/v1/server/refresh")

	rec = env.do(t, http.MethodGet, "/api/v1/alerts")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Alerts, 1)

	rec = env.do(t, http.MethodPost, "/api/v1/alerts/"+listing.Alerts[0].ID+"/acknowledge")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Idempotent, and unknown ids are not-found.
	rec = env.do(t, http.MethodPost, "/api/v1/alerts/"+listing.Alerts[0].ID+"/acknowledge")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/alerts/nope/acknowledge")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusReflectsAcknowledgement(t *testing.T) {
	env := newTestEnv(t)

	env.fetcher.err = errors.New("boom")
	env.do(t, http.MethodPost, "/api/v1/server/refresh")

	var listing struct {
		Alerts []models.SystemAlert `json:"alerts"`
	}
	rec := env.do(t, http.MethodGet, "/api/v1/alerts")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Alerts, 1)
	assert.False(t, listing.Alerts[0].Acknowledged)

	rec = env.do(t, http.MethodPost, "/api/v1/alerts/"+listing.Alerts[0].ID+"/acknowledge")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// No cycle ran since the acknowledgement; status must still show it.
	rec = env.do(t, http.MethodGet, "/api/v1/server/status")
	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Len(t, snapshot.Alerts, 1)
	assert.True(t, snapshot.Alerts[0].Acknowledged)
}

func TestAlertActionBadPaths(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/alerts/some-id/resolve")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/alerts/some-id/acknowledge")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, string(models.StatusDisconnected), health["connection"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
