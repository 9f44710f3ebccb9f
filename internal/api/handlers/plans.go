package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"route-planner/internal/api/dto"
	"route-planner/internal/domain"
	"route-planner/internal/services"
)

// Planner is the slice of services.Planner the HTTP layer triggers.
type Planner interface {
	PlanClusters(ctx context.Context, req services.PlanRequest) (services.ClusterPlan, error)
	PlanLastMile(ctx context.Context, req services.PlanRequest) (services.RoutePlan, error)
	PlanTransfers(ctx context.Context, req services.PlanRequest) (services.RoutePlan, error)
}

type PlanHandler struct {
	Planner Planner
	Logger  *slog.Logger
}

// Clusters runs the clustering stage for one tenant and ship date.
func (h *PlanHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	plan, err := h.Planner.PlanClusters(r.Context(), req)
	if err != nil {
		h.fail(w, r, "plan clusters", err)
		return
	}

	res := dto.ClusterPlanResponse{
		TenantID:      req.TenantID,
		ShipDate:      plan.Key.DateString(),
		K:             plan.K,
		ElbowFallback: plan.ElbowFallback,
		Clusters:      make([]dto.ClusterResponse, 0, len(plan.Clusters)),
		Discarded:     discarded(plan.Discarded),
		Warnings:      nonNil(plan.Warnings),
	}
	for _, c := range plan.Clusters {
		res.Clusters = append(res.Clusters, dto.ClusterResponse{
			ClusterID:  c.ClusterID,
			Center:     c.Center,
			CenterCity: c.CenterCity,
			MemberIDs:  c.MemberIDs(),
			Load:       c.Totals(),
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *PlanHandler) LastMile(w http.ResponseWriter, r *http.Request) {
	h.routes(w, r, "plan last mile", h.Planner.PlanLastMile)
}

func (h *PlanHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	h.routes(w, r, "plan transfers", h.Planner.PlanTransfers)
}

func (h *PlanHandler) routes(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	plan func(context.Context, services.PlanRequest) (services.RoutePlan, error),
) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	p, err := plan(r.Context(), req)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	routes := p.Routes
	if routes == nil {
		routes = []domain.Route{}
	}
	writeJSON(w, r, http.StatusOK, dto.RoutePlanResponse{
		TenantID:     req.TenantID,
		ShipDate:     p.Key.DateString(),
		Kind:         p.Kind,
		Routes:       routes,
		SubClusters:  p.SubClusters,
		DirectRoutes: p.DirectRoutes,
		Attempt:      p.Attempt,
		Discarded:    discarded(p.Discarded),
		Warnings:     nonNil(p.Warnings),
	})
}

// request validates path parameters and the optional body.
func (h *PlanHandler) request(w http.ResponseWriter, r *http.Request) (services.PlanRequest, bool) {
	tenant := strings.TrimSpace(chi.URLParam(r, "tenant"))
	if tenant == "" {
		writeError(w, r, http.StatusBadRequest, "tenant is required")
		return services.PlanRequest{}, false
	}

	date, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return services.PlanRequest{}, false
	}

	var body dto.PlanRequest
	if err := decodeOptional(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return services.PlanRequest{}, false
	}
	if body.K < 0 {
		writeError(w, r, http.StatusBadRequest, "k must not be negative")
		return services.PlanRequest{}, false
	}

	return services.PlanRequest{TenantID: tenant, ShipDate: date, K: body.K, Persist: body.Persist}, true
}

func (h *PlanHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(r.Context(), op+" failed", "status", status, "err", err)
	writeError(w, r, status, msg)
}

func discarded(errs []domain.OutOfRegionError) []dto.DiscardedResponse {
	out := make([]dto.DiscardedResponse, 0, len(errs))
	for _, e := range errs {
		out = append(out, dto.DiscardedResponse{DeliveryID: e.DeliveryID, RegionCode: e.RegionCode, Coords: e.Coords})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
