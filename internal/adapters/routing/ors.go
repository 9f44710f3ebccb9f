package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"route-planner/internal/domain"
	"route-planner/internal/platform/httpx"
	"route-planner/internal/platform/obs"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// ORSBackend queries the OpenRouteService directions API. It is the
// secondary backend and the lower-throughput one, so every outbound call
// waits on a token bucket.
//
// The backend is safe for concurrent use.
type ORSBackend struct {
	client  *httpx.Client
	baseURL string
	profile string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewORSBackend builds the backend. ratePerSecond <= 0 disables limiting.
func NewORSBackend(
	baseURL string,
	apiKey string,
	ratePerSecond float64,
	logger *slog.Logger,
) (*ORSBackend, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}

	return &ORSBackend{
		client:  httpx.NewClient(10*time.Second, map[string]string{"Authorization": apiKey}),
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving-car",
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

func (o *ORSBackend) Name() string { return "ors" }

func (o *ORSBackend) Route(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ domain.RouteResult, err error) {
	defer obs.Time(ctx, o.logger, "ors.Route")(&err)

	endpoint := fmt.Sprintf("%s/v2/directions/%s", o.baseURL, o.profile)

	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{origin.CoordsToList(), destination.CoordsToList()},
	})
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.client.DoWithRetry(ctx, func() (*http.Request, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return o.client.NewRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.RouteResult{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(decoded.Routes) == 0 {
		return domain.RouteResult{}, errors.New("ors: directions returned no routes")
	}

	r := decoded.Routes[0]
	if r.Summary.Distance <= 0 {
		return domain.RouteResult{}, errors.New("ors: no usable distance")
	}

	return domain.RouteResult{
		DistanceKm: r.Summary.Distance / 1000,
		TimeMin:    r.Summary.Duration / 60,
		Polyline:   r.Geometry,
	}, nil
}
