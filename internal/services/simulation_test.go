package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
)

func TestSimulatorRunsEveryDate(t *testing.T) {
	f := newPlannerFixture(t)
	next := testDate.AddDate(0, 0, 1)
	// The next day only has two deliveries near Campinas.
	f.deliveries.points = append(f.deliveries.points,
		withDate(delivery("N1", campinas.Lat, campinas.Lon, 3), next),
		withDate(delivery("N2", campinas.Lat+0.01, campinas.Lon, 3), next),
	)

	sim := NewSimulator(f.planner, 2, false, obs.Discard())
	outcomes, err := sim.Run(context.Background(), "acme", []time.Time{testDate, next}, 0)
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	assert.Equal(t, testDate, outcomes[0].Date)
	assert.Equal(t, next, outcomes[1].Date)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.NotEmpty(t, o.Plan.LastMile.Routes)
	}
	assert.Len(t, routeDeliveryIDs(outcomes[1].Plan.LastMile.Routes), 2)
}

func TestSimulatorIsolatesFailures(t *testing.T) {
	f := newPlannerFixture(t)
	f.tenants.hub = &domain.Hub{TenantID: "someone-else"}

	sim := NewSimulator(f.planner, 1, false, obs.Discard())
	outcomes, err := sim.Run(context.Background(), "acme", DateRange(testDate, testDate.AddDate(0, 0, 2)), 0)
	require.NoError(t, err)

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, domain.ErrNotConfigured)
	}
}

func TestSimulatorCancelled(t *testing.T) {
	f := newPlannerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := NewSimulator(f.planner, 2, false, obs.Discard()).Run(ctx, "acme", []time.Time{testDate}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
}

func TestDateRange(t *testing.T) {
	days := DateRange(testDate, testDate.AddDate(0, 0, 2))
	require.Len(t, days, 3)
	assert.Equal(t, testDate.AddDate(0, 0, 2), days[2])
	assert.Empty(t, DateRange(testDate, testDate.AddDate(0, 0, -1)))
}

func withDate(d domain.DeliveryPoint, date time.Time) domain.DeliveryPoint {
	d.ShipDate = date
	return d
}
