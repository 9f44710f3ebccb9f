package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"route-planner/internal/domain"
	"route-planner/internal/platform/httpx"
	"route-planner/internal/platform/obs"
)

type reverseResponse struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Error   string `json:"error"`
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		ISO          string `json:"ISO3166-2-lvl4"`
	} `json:"address"`
}

// NominatimGeocoder reverse-geocodes through a Nominatim server.
// The public instance allows one request per second, so calls are rate limited.
type NominatimGeocoder struct {
	client  *httpx.Client
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewNominatimGeocoder(baseURL, userAgent string, logger *slog.Logger) (*NominatimGeocoder, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("nominatim base url is empty")
	}
	if userAgent == "" {
		userAgent = "route-planner/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &NominatimGeocoder{
		client:  httpx.NewClient(10*time.Second, map[string]string{"User-Agent": userAgent}),
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}, nil
}

func (n *NominatimGeocoder) Reverse(ctx context.Context, coords domain.Coordinates) (_ domain.Locality, err error) {
	defer obs.Time(ctx, n.logger, "nominatim.Reverse")(&err)

	endpoint := n.baseURL + "/reverse"

	resp, err := n.client.DoWithRetry(ctx, func() (*http.Request, error) {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := n.client.NewRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("format", "jsonv2")
		q.Set("zoom", "10")
		q.Set("lat", strconv.FormatFloat(coords.Lat, 'f', 6, 64))
		q.Set("lon", strconv.FormatFloat(coords.Lon, 'f', 6, 64))
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Locality{}, fmt.Errorf("reverse geocode %s: %w", coords.Key(), err)
	}
	defer resp.Body.Close()

	var decoded reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Locality{}, fmt.Errorf("decode reverse response: %w", err)
	}
	if decoded.Error != "" {
		return domain.Locality{}, fmt.Errorf("reverse geocode %s: %s", coords.Key(), decoded.Error)
	}

	name := firstNonEmpty(decoded.Address.City, decoded.Address.Town, decoded.Address.Village, decoded.Address.Municipality)
	if name == "" {
		return domain.Locality{}, fmt.Errorf("reverse geocode %s: no locality in response", coords.Key())
	}

	loc := domain.Locality{
		Name:       name,
		RegionCode: regionFromISO(decoded.Address.ISO),
		Coords:     coords,
	}
	lat, latErr := strconv.ParseFloat(decoded.Lat, 64)
	lon, lonErr := strconv.ParseFloat(decoded.Lon, 64)
	if latErr == nil && lonErr == nil {
		loc.Coords = domain.Coordinates{Lat: lat, Lon: lon}
	}

	return loc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// regionFromISO turns "BR-SP" into "SP".
func regionFromISO(iso string) string {
	if _, after, ok := strings.Cut(iso, "-"); ok {
		return after
	}
	return iso
}
