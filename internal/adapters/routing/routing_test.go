package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
)

var (
	saoPaulo = domain.Coordinates{Lat: -23.5505, Lon: -46.6333}
	campinas = domain.Coordinates{Lat: -22.9056, Lon: -47.0608}
)

func TestOSRMBackendParsesRoute(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":95300,"duration":4200,"geometry":"abc"}]}`))
	}))
	defer srv.Close()

	b, err := NewOSRMBackend(srv.URL, obs.Discard())
	require.NoError(t, err)

	got, err := b.Route(context.Background(), saoPaulo, campinas)
	require.NoError(t, err)

	assert.InDelta(t, 95.3, got.DistanceKm, 1e-9)
	assert.InDelta(t, 70.0, got.TimeMin, 1e-9)
	assert.Equal(t, "abc", got.Polyline)
	assert.True(t, strings.HasPrefix(gotPath, "/route/v1/driving/-46.633300,-23.550500;"), gotPath)
	assert.Contains(t, gotQuery, "overview=full")
}

func TestOSRMBackendRejectsUnusableDistance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":0,"duration":0,"geometry":""}]}`))
	}))
	defer srv.Close()

	b, err := NewOSRMBackend(srv.URL, obs.Discard())
	require.NoError(t, err)

	_, err = b.Route(context.Background(), saoPaulo, campinas)
	require.Error(t, err)

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route"}`))
	}))
	defer srv2.Close()

	b2, err := NewOSRMBackend(srv2.URL, obs.Discard())
	require.NoError(t, err)
	_, err = b2.Route(context.Background(), saoPaulo, campinas)
	require.ErrorContains(t, err, "NoRoute")
}

func TestORSBackendRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/v2/directions/driving-car", r.URL.Path)

		var body directionsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, [][]float64{saoPaulo.CoordsToList(), campinas.CoordsToList()}, body.Coordinates)

		_, _ = w.Write([]byte(`{"routes":[{"summary":{"distance":1500,"duration":120},"geometry":"xyz"}]}`))
	}))
	defer srv.Close()

	b, err := NewORSBackend(srv.URL, "secret", 0, obs.Discard())
	require.NoError(t, err)
	b.client.Backoff = time.Millisecond

	got, err := b.Route(context.Background(), saoPaulo, campinas)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.InDelta(t, 1.5, got.DistanceKm, 1e-9)
	assert.InDelta(t, 2.0, got.TimeMin, 1e-9)
}

func TestORSBackendDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad coordinates", http.StatusBadRequest)
	}))
	defer srv.Close()

	b, err := NewORSBackend(srv.URL, "secret", 0, obs.Discard())
	require.NoError(t, err)

	_, err = b.Route(context.Background(), saoPaulo, campinas)
	require.ErrorContains(t, err, "Code 400")
	assert.Equal(t, int32(1), hits.Load())
}

func TestORSBackendRequiresAPIKey(t *testing.T) {
	_, err := NewORSBackend("http://example.invalid", "", 1, nil)
	require.Error(t, err)
}

func TestORSBackendHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	}))
	defer srv.Close()

	b, err := NewORSBackend(srv.URL, "secret", 1, obs.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Route(ctx, saoPaulo, campinas)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMockBackend(t *testing.T) {
	b := NewMockBackend("mock", []MockPair{{From: saoPaulo, To: campinas, DistanceKm: 99, TimeMin: 80}})

	got, err := b.Route(context.Background(), saoPaulo, campinas)
	require.NoError(t, err)
	assert.Equal(t, 99.0, got.DistanceKm)

	back, err := b.Route(context.Background(), campinas, saoPaulo)
	require.NoError(t, err)
	assert.InDelta(t, domain.HaversineKm(campinas, saoPaulo), back.DistanceKm, 1e-9)
	assert.InDelta(t, back.DistanceKm, back.TimeMin, 1e-9)
	assert.Equal(t, int64(2), b.Calls())

	b.Fail = true
	_, err = b.Route(context.Background(), saoPaulo, campinas)
	require.Error(t, err)
}
