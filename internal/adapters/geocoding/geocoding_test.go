package geocoding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
)

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "10", r.URL.Query().Get("zoom"))
		assert.Equal(t, "-22.905600", r.URL.Query().Get("lat"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"lat":"-22.9","lon":"-47.06","address":{"town":"Campinas","ISO3166-2-lvl4":"BR-SP"}}`))
	}))
	defer srv.Close()

	g, err := NewNominatimGeocoder(srv.URL, "test-agent", obs.Discard())
	require.NoError(t, err)

	loc, err := g.Reverse(context.Background(), domain.Coordinates{Lat: -22.9056, Lon: -47.0608})
	require.NoError(t, err)
	assert.Equal(t, "Campinas", loc.Name)
	assert.Equal(t, "SP", loc.RegionCode)
	assert.Equal(t, -22.9, loc.Coords.Lat)
}

func TestNominatimReverseWithoutLocality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	g, err := NewNominatimGeocoder(srv.URL, "", obs.Discard())
	require.NoError(t, err)

	_, err = g.Reverse(context.Background(), domain.Coordinates{Lat: -10, Lon: -30})
	require.ErrorContains(t, err, "Unable to geocode")
}

func TestGazetteerNearest(t *testing.T) {
	g := NewBrazilGazetteer()
	require.Greater(t, g.Size(), 50)

	loc, err := g.Reverse(context.Background(), domain.Coordinates{Lat: -22.95, Lon: -47.10})
	require.NoError(t, err)
	assert.Equal(t, "Campinas", loc.Name)
	assert.Equal(t, "SP", loc.RegionCode)

	loc, err = g.Reverse(context.Background(), domain.Coordinates{Lat: -30.1, Lon: -51.2})
	require.NoError(t, err)
	assert.Equal(t, "Porto Alegre", loc.Name)
}

func TestGazetteerEmpty(t *testing.T) {
	_, err := NewGazetteer(nil).Reverse(context.Background(), domain.Coordinates{})
	require.Error(t, err)
}

type memCache struct {
	mu sync.Mutex
	m  map[string]domain.Locality
}

func (c *memCache) Get(_ context.Context, coords domain.Coordinates) (domain.Locality, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.m[coords.Key()]
	return l, ok, nil
}

func (c *memCache) Put(_ context.Context, coords domain.Coordinates, l domain.Locality) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[coords.Key()] = l
	return nil
}

type stubGeocoder struct {
	loc   domain.Locality
	err   error
	calls int
}

func (s *stubGeocoder) Reverse(context.Context, domain.Coordinates) (domain.Locality, error) {
	s.calls++
	return s.loc, s.err
}

func TestChainGeocoderCachesOnlineResults(t *testing.T) {
	cache := &memCache{m: map[string]domain.Locality{}}
	online := &stubGeocoder{loc: domain.Locality{Name: "Sorocaba", RegionCode: "SP"}}
	chain := NewChainGeocoder(cache, online, NewBrazilGazetteer(), obs.Discard())
	at := domain.Coordinates{Lat: -23.5, Lon: -47.45}

	for i := 0; i < 3; i++ {
		loc, err := chain.Reverse(context.Background(), at)
		require.NoError(t, err)
		assert.Equal(t, "Sorocaba", loc.Name)
	}
	assert.Equal(t, 1, online.calls)
}

func TestChainGeocoderFallsBackToGazetteer(t *testing.T) {
	cache := &memCache{m: map[string]domain.Locality{}}
	online := &stubGeocoder{err: errors.New("nominatim down")}
	chain := NewChainGeocoder(cache, online, NewBrazilGazetteer(), obs.Discard())
	at := domain.Coordinates{Lat: -23.55, Lon: -46.60}

	loc, err := chain.Reverse(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", loc.Name)
	assert.Empty(t, cache.m, "gazetteer answers are not cached")
}

func TestChainGeocoderWithoutBackends(t *testing.T) {
	_, err := NewChainGeocoder(nil, nil, nil, nil).Reverse(context.Background(), domain.Coordinates{})
	require.Error(t, err)
}
