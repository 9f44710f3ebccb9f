package domain

// Locality is a named urban reference point returned by reverse geocoding.
type Locality struct {
	Name       string      `json:"name"`
	RegionCode string      `json:"region_code,omitempty"`
	Coords     Coordinates `json:"coords"`
}
