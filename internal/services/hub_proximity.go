package services

import "route-planner/internal/domain"

// SplitByHub separates deliveries within radiusKm (geodesic, inclusive) of
// the hub from the rest. A non-positive radius keeps everything remaining.
func SplitByHub(points []domain.DeliveryPoint, hub domain.Coordinates, radiusKm float64) (hubPoints, remaining []domain.DeliveryPoint) {
	for _, p := range points {
		if radiusKm > 0 && domain.HaversineKm(hub, p.Coords()) <= radiusKm {
			hubPoints = append(hubPoints, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	return hubPoints, remaining
}

// HubCluster wraps the hub-local deliveries in the reserved cluster centred
// on the hub. It never takes part in transfer routing.
func HubCluster(hub domain.Hub, points []domain.DeliveryPoint) domain.Cluster {
	city := dominantCity(points)
	if city == "" {
		city = hub.Name
	}
	return domain.Cluster{
		ClusterID:  domain.HubClusterID,
		Center:     hub.Coords,
		CenterCity: city,
		Members:    points,
	}
}
