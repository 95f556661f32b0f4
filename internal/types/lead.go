package types

import "time"

// Lead represents a prospective customer inquiry to be routed to an agent.
// The engine consumes leads read-only; ownership stays with the caller.
type Lead struct {
	ID              string    `json:"id"`
	Origin          string    `json:"origin"`
	Value           float64   `json:"value"`
	PropertyType    string    `json:"propertyType"`
	DesiredLocation *GeoPoint `json:"desiredLocation,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
