package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	httpadapter "github.com/pluvia-labs/rainfall-oracle/internal/adapter/http"
	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
	"github.com/pluvia-labs/rainfall-oracle/internal/oracle"
	"github.com/pluvia-labs/rainfall-oracle/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// t0 is 2026-01-01 00:00:00 UTC, aligned to a bucket boundary.
const t0 = int64(1_767_225_600)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockResolver struct {
	resolved domain.ResolvedLocation
	err      error
}

func (m *mockResolver) Resolve(_ context.Context, _, _ int64) (domain.ResolvedLocation, error) {
	return m.resolved, m.err
}

type testServer struct {
	srv    *httpadapter.Server
	binder *oracle.Binder
}

func newTestServer(t *testing.T, readyErr error, resolver domain.Resolver) *testServer {
	t.Helper()

	mem := store.NewMemory()
	clock := clockwork.NewFakeClockAt(time.Unix(t0+2*3600, 0).UTC())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	binder := oracle.NewBinder(mem, clock, logger)
	agg := oracle.NewAggregator(mem, mem, logger, metrics)
	gw := oracle.NewGateway(binder, agg, nil, clock, logger, metrics, oracle.GatewayConfig{})
	query := oracle.NewThresholdQuery(binder, agg, metrics)

	srv := httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, binder, gw, query, resolver, clock, logger)
	return &testServer{srv: srv, binder: binder}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rec := ts.do(http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rec := ts.do(http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeBody(t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	ts := newTestServer(t, fmt.Errorf("not ready yet"), nil)
	rec := ts.do(http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rec := ts.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBindLocation(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding",
		`{"provider_key":"place.12345","anchor_lat":30267200,"anchor_lon":-97743100}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "mkt-atx-rain", body["location_id"])
	assert.Equal(t, "place.12345", body["provider_key"])

	rec = ts.do(http.MethodGet, "/v1/locations/mkt-atx-rain/binding", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "place.12345", decodeBody(t, rec)["provider_key"])
}

func TestBindLocation_Conflict(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	body := `{"provider_key":"place.12345","anchor_lat":30267200,"anchor_lon":-97743100}`
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding", body).Code)

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBindLocation_InvalidCoordinates(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding",
		`{"provider_key":"place.12345","anchor_lat":91000000,"anchor_lon":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBindLocation_MissingProviderKeyWithoutResolver(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding",
		`{"anchor_lat":30267200,"anchor_lon":-97743100}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBindLocation_ResolvesProviderKey(t *testing.T) {
	resolver := &mockResolver{resolved: domain.ResolvedLocation{ProviderKey: "place.99", PlaceName: "Austin"}}
	ts := newTestServer(t, nil, resolver)

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding",
		`{"anchor_lat":30267200,"anchor_lon":-97743100}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "place.99", decodeBody(t, rec)["provider_key"])
}

func TestBindLocation_ResolverFindsNothing(t *testing.T) {
	ts := newTestServer(t, nil, &mockResolver{})

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-ocean/binding",
		`{"anchor_lat":-48000000,"anchor_lon":-123000000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBindLocation_ResolverError(t *testing.T) {
	ts := newTestServer(t, nil, &mockResolver{err: fmt.Errorf("mapbox down")})

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding",
		`{"anchor_lat":30267200,"anchor_lon":-97743100}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBindLocation_ExplicitKeySkipsResolver(t *testing.T) {
	ts := newTestServer(t, nil, &mockResolver{err: fmt.Errorf("mapbox down")})

	rec := ts.do(http.MethodPost, "/v1/locations/mkt-atx-rain/binding",
		`{"provider_key":"place.12345","anchor_lat":30267200,"anchor_lon":-97743100}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetBinding_NotFound(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(http.MethodGet, "/v1/locations/nowhere/binding", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitReading(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	require.NoError(t, ts.binder.Bind("mkt-atx-rain", "place.12345", 30267200, -97743100))

	rec := ts.do(http.MethodPost, "/v1/readings",
		fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":12}`, t0))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/v1/locations/mkt-atx-rain/rolling-sum?at=%d", t0+3600), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(12), decodeBody(t, rec)["rolling_sum_mm"])
}

func TestSubmitReading_Unbound(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(http.MethodPost, "/v1/readings",
		fmt.Sprintf(`{"location_id":"nowhere","timestamp":%d,"rainfall_mm":12}`, t0))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitReading_Invalid(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	require.NoError(t, ts.binder.Bind("mkt-atx-rain", "place.12345", 30267200, -97743100))

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing fields", `{"rainfall_mm":5}`, http.StatusBadRequest},
		{"stale timestamp", fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":5}`, t0-10*24*3600), http.StatusUnprocessableEntity},
		{"future timestamp", fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":5}`, t0+24*3600), http.StatusUnprocessableEntity},
		{"negative rainfall", fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":-1}`, t0), http.StatusUnprocessableEntity},
		{"rainfall above ceiling", fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":1001}`, t0), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/v1/readings", tc.body)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestRollingSum_DefaultsToNow(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	require.NoError(t, ts.binder.Bind("mkt-atx-rain", "place.12345", 30267200, -97743100))

	rec := ts.do(http.MethodPost, "/v1/readings",
		fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":7}`, t0))
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The fake clock sits at t0+2h, so the bucket at t0 is inside the window.
	rec = ts.do(http.MethodGet, "/v1/locations/mkt-atx-rain/rolling-sum", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(7), body["rolling_sum_mm"])
	assert.Equal(t, float64(t0+2*3600), body["as_of"])
}

func TestRollingSum_Unbound(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(http.MethodGet, "/v1/locations/nowhere/rolling-sum", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRollingSum_BadAtParameter(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	require.NoError(t, ts.binder.Bind("mkt-atx-rain", "place.12345", 30267200, -97743100))

	rec := ts.do(http.MethodGet, "/v1/locations/mkt-atx-rain/rolling-sum?at=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStrike(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	require.NoError(t, ts.binder.Bind("mkt-atx-rain", "place.12345", 30267200, -97743100))

	for _, reading := range []string{
		fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":5}`, t0),
		fmt.Sprintf(`{"location_id":"mkt-atx-rain","timestamp":%d,"rainfall_mm":95}`, t0+3600),
	} {
		require.Equal(t, http.StatusAccepted, ts.do(http.MethodPost, "/v1/readings", reading).Code)
	}

	rec := ts.do(http.MethodGet,
		fmt.Sprintf("/v1/locations/mkt-atx-rain/strike?strike_mm=100&from=%d&to=%d", t0, t0+7200), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["struck"])

	rec = ts.do(http.MethodGet,
		fmt.Sprintf("/v1/locations/mkt-atx-rain/strike?strike_mm=101&from=%d&to=%d", t0, t0+7200), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["struck"])
}

func TestStrike_InvalidWindow(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	require.NoError(t, ts.binder.Bind("mkt-atx-rain", "place.12345", 30267200, -97743100))

	rec := ts.do(http.MethodGet,
		fmt.Sprintf("/v1/locations/mkt-atx-rain/strike?strike_mm=100&from=%d&to=%d", t0+7200, t0), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStrike_BadParameters(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rec := ts.do(http.MethodGet, "/v1/locations/mkt-atx-rain/strike?strike_mm=lots&from=1&to=2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
