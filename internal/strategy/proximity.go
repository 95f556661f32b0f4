package strategy

import (
	"math"

	"github.com/salesklug/leadflow/internal/types"
)

const earthRadiusKm = 6371.0

// Proximity picks the candidate closest to the lead's desired location by
// great-circle distance. Leads without a location, and candidate sets
// where nobody has a location, fall back to least load.
type Proximity struct{}

// Choose returns the nearest located candidate
func (Proximity) Choose(lead types.Lead, candidates []types.Agent) types.Agent {
	if lead.DesiredLocation == nil {
		return LeastLoad{}.Choose(lead, candidates)
	}

	sorted := sortByID(candidates)
	var best *types.Agent
	bestDist := math.MaxFloat64
	for i := range sorted {
		if sorted[i].Location == nil {
			continue
		}
		dist := haversineKm(*lead.DesiredLocation, *sorted[i].Location)
		if dist < bestDist {
			best = &sorted[i]
			bestDist = dist
		}
	}

	if best == nil {
		return LeastLoad{}.Choose(lead, candidates)
	}
	return *best
}

// haversineKm computes the great-circle distance between two points
func haversineKm(a, b types.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
