package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"route-planner/internal/domain"
	"route-planner/internal/platform/httpx"
	"route-planner/internal/platform/obs"
)

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// OSRMBackend queries an OSRM road-network server. It is the primary backend.
type OSRMBackend struct {
	client  *httpx.Client
	baseURL string
	profile string
	logger  *slog.Logger
}

func NewOSRMBackend(baseURL string, logger *slog.Logger) (*OSRMBackend, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("OSRM base url is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OSRMBackend{
		client:  httpx.NewClient(10*time.Second, nil),
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
		logger:  logger,
	}, nil
}

func (o *OSRMBackend) Name() string { return "osrm" }

func (o *OSRMBackend) Route(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ domain.RouteResult, err error) {
	defer obs.Time(ctx, o.logger, "osrm.Route")(&err)

	endpoint := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f",
		o.baseURL, o.profile, origin.Lon, origin.Lat, destination.Lon, destination.Lat)

	resp, err := o.client.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.client.NewRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("overview", "full")
		q.Set("geometries", "polyline")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("osrm route request: %w", err)
	}
	defer resp.Body.Close()

	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.RouteResult{}, fmt.Errorf("decode osrm response: %w", err)
	}

	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		return domain.RouteResult{}, fmt.Errorf("osrm: no usable route: code=%q message=%q", decoded.Code, decoded.Message)
	}

	r := decoded.Routes[0]
	if r.Distance <= 0 {
		return domain.RouteResult{}, errors.New("osrm: no usable distance")
	}

	return domain.RouteResult{
		DistanceKm: r.Distance / 1000,
		TimeMin:    r.Duration / 60,
		Polyline:   r.Geometry,
	}, nil
}
