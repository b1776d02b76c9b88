package geo

import (
	"sort"
	"sync"

	"ridecore/internal/domain"
)

// DefaultRadiusKm is the search radius used when a caller passes zero.
const DefaultRadiusKm = 5.0

// Candidate is a driver known to the index together with its availability.
type Candidate struct {
	Driver    domain.DriverRef
	Online    bool
	Available bool
	Located   bool
}

func (c Candidate) eligible(f Filter) bool {
	if !c.Online || !c.Available || !c.Located || c.Driver.PushToken == "" {
		return false
	}
	if !f.Tier.Matches(c.Driver.VehicleTier) {
		return false
	}
	_, excluded := f.Exclude[c.Driver.ID]
	return !excluded
}

// Filter narrows a query to a tier and skips excluded drivers.
type Filter struct {
	Tier    domain.VehicleTier
	Exclude map[string]struct{}
}

// Match is a driver and its distance from the query point.
type Match struct {
	Driver     domain.DriverRef
	DistanceKm float64
}

// Index is an in-memory set of drivers queried by linear scan.
// Every query walks all candidates; swap for a geohash or H3 bucket
// if the candidate count grows large.
type Index struct {
	mu      sync.RWMutex
	drivers map[string]Candidate
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{drivers: make(map[string]Candidate)}
}

// NewIndexFrom builds an index from a snapshot of candidates.
func NewIndexFrom(candidates []Candidate) *Index {
	idx := NewIndex()
	for _, c := range candidates {
		idx.drivers[c.Driver.ID] = c
	}
	return idx
}

// Upsert stores or replaces a driver. Last writer wins.
func (g *Index) Upsert(c Candidate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[c.Driver.ID] = c
}

// Remove drops a driver from the index.
func (g *Index) Remove(driverID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.drivers, driverID)
}

// Len returns the number of drivers in the index.
func (g *Index) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.drivers)
}

// Nearest returns the closest eligible driver, or false if none qualifies.
func (g *Index) Nearest(lat, lng float64, f Filter) (Match, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best Match
	found := false
	for _, c := range g.drivers {
		if !c.eligible(f) {
			continue
		}
		d := Haversine(lat, lng, c.Driver.Lat, c.Driver.Lng)
		if !found || d < best.DistanceKm || (d == best.DistanceKm && c.Driver.ID < best.Driver.ID) {
			best = Match{Driver: c.Driver, DistanceKm: d}
			found = true
		}
	}
	return best, found
}

// WithinRadius returns eligible drivers no further than radiusKm, closest first.
func (g *Index) WithinRadius(lat, lng, radiusKm float64, f Filter) []Match {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	g.mu.RLock()
	matches := make([]Match, 0, len(g.drivers))
	for _, c := range g.drivers {
		if !c.eligible(f) {
			continue
		}
		d := Haversine(lat, lng, c.Driver.Lat, c.Driver.Lng)
		if d <= radiusKm {
			matches = append(matches, Match{Driver: c.Driver, DistanceKm: d})
		}
	}
	g.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm == matches[j].DistanceKm {
			return matches[i].Driver.ID < matches[j].Driver.ID
		}
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches
}
