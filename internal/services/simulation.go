package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// SimulationOutcome is the result for one date. Err is set when that
// date failed; other dates are unaffected.
type SimulationOutcome struct {
	Date time.Time
	Plan DayPlan
	Err  error
}

// Simulator runs independent daily plans concurrently.
type Simulator struct {
	planner *Planner
	workers int
	persist bool
	logger  *slog.Logger
}

func NewSimulator(planner *Planner, workers int, persist bool, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{planner: planner, workers: max(workers, 1), persist: persist, logger: logger}
}

// Run plans every date with at most workers dates in flight. Outcomes keep
// the order of dates. The error is non-nil only when ctx was cancelled.
func (s *Simulator) Run(ctx context.Context, tenantID string, dates []time.Time, k int) ([]SimulationOutcome, error) {
	out := make([]SimulationOutcome, len(dates))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, date := range dates {
		g.Go(func() error {
			out[i].Date = date
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}

			plan, err := s.planner.PlanAll(ctx, PlanRequest{
				TenantID: tenantID,
				ShipDate: date,
				K:        k,
				Persist:  s.persist,
			})
			if err != nil {
				out[i].Err = fmt.Errorf("simulate %s: %w", date.Format(time.DateOnly), err)
				s.logger.WarnContext(ctx, "simulation date failed",
					"tenant", tenantID, "date", date.Format(time.DateOnly), "err", err)
				return nil
			}
			out[i].Plan = plan
			s.logger.InfoContext(ctx, "simulation date done",
				"tenant", tenantID,
				"date", date.Format(time.DateOnly),
				"clusters", len(plan.Clusters.Clusters),
				"last_mile_routes", len(plan.LastMile.Routes),
				"transfer_routes", len(plan.Transfers.Routes),
			)
			return nil
		})
	}
	_ = g.Wait()

	return out, ctx.Err()
}

// DateRange returns every day from start to end inclusive.
func DateRange(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
