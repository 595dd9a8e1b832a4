package citydb

import (
	"math"
	"sort"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
)

// Validate checks the linkage invariants of a dataset: every index points
// into its table, radii are finite, non-negative and non-increasing,
// coordinates are valid, and the country table is sorted and distinct.
// Duplicate region text is allowed (see DuplicateRegions).
func (d *Dataset) Validate() error {
	for i, c := range d.Cities {
		if c.Region < 0 || c.Region >= len(d.Regions) {
			return eris.Errorf("validate: city %d (%s): region index %d out of range [0,%d)", i, c.Name, c.Region, len(d.Regions))
		}
		if c.Country < 0 || c.Country >= len(d.Countries) {
			return eris.Errorf("validate: city %d (%s): country index %d out of range [0,%d)", i, c.Name, c.Country, len(d.Countries))
		}
		if math.IsNaN(c.Radius) || math.IsInf(c.Radius, 0) || c.Radius < 0 {
			return eris.Errorf("validate: city %d (%s): invalid radius %v", i, c.Name, c.Radius)
		}
		if i > 0 && c.Radius > d.Cities[i-1].Radius {
			return eris.Errorf("validate: city %d (%s): radius %v larger than predecessor %v", i, c.Name, c.Radius, d.Cities[i-1].Radius)
		}
		if !s2.LatLngFromDegrees(c.Loc.Lat, c.Loc.Lon).IsValid() {
			return eris.Errorf("validate: city %d (%s): invalid coordinates %v,%v", i, c.Name, c.Loc.Lat, c.Loc.Lon)
		}
	}
	for i := 1; i < len(d.Countries); i++ {
		if d.Countries[i] <= d.Countries[i-1] {
			return eris.Errorf("validate: countries not sorted and distinct at %d: %q after %q", i, d.Countries[i], d.Countries[i-1])
		}
	}
	return nil
}

// DuplicateRegions maps region text that appears more than once in the
// region table to its positions. Non-empty only when slash cleanup made
// distinct source regions identical and they were not merged.
func (d *Dataset) DuplicateRegions() map[string][]int {
	return regionCollisions(d.Regions)
}

// Colocated groups cities that fall into the same geohash cell of the
// given precision. Only groups with two or more members are returned,
// ordered by their first city index.
func (d *Dataset) Colocated(precision int) [][]int {
	byHash := make(map[string][]int)
	for i, c := range d.Cities {
		h := geohash.EncodeWithPrecision(c.Loc.Lat, c.Loc.Lon, precision)
		byHash[h] = append(byHash[h], i)
	}

	var groups [][]int
	for _, idx := range byHash {
		if len(idx) > 1 {
			groups = append(groups, idx)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// s2CellLevel sets the granularity of the nearest-city index. Level 6
// cells are at least ~94km wide, so the query cell plus its ring of
// neighbours covers every point within that distance of the query.
const s2CellLevel = 6

// maxNearestDistance is ~90km in radians on the unit sphere, inside the
// area the cell ring is guaranteed to cover. Nearest reports no match
// beyond it.
const maxNearestDistance = 90.0 / 6371.0

// Locator answers nearest-city queries over a dataset using an S2 cell
// index. Safe for concurrent use after construction.
type Locator struct {
	d     *Dataset
	cells map[s2.CellID][]int
}

// NewLocator indexes every city of d by its S2 cell.
func NewLocator(d *Dataset) *Locator {
	l := &Locator{d: d, cells: make(map[s2.CellID][]int)}
	for i, c := range d.Cities {
		ll := s2.LatLngFromDegrees(c.Loc.Lat, c.Loc.Lon)
		cell := s2.CellIDFromLatLng(ll).Parent(s2CellLevel)
		l.cells[cell] = append(l.cells[cell], i)
	}
	return l
}

// cellAndNeighbors returns the given cell plus its edge and corner neighbours.
func cellAndNeighbors(cell s2.CellID) []s2.CellID {
	cells := make([]s2.CellID, 0, 9)
	cells = append(cells, cell)

	edges := cell.EdgeNeighbors()
	cells = append(cells, edges[:]...)

	seen := make(map[s2.CellID]bool, 9)
	for _, c := range cells {
		seen[c] = true
	}
	for _, e := range edges {
		for _, corner := range e.EdgeNeighbors() {
			if !seen[corner] {
				cells = append(cells, corner)
				seen[corner] = true
			}
		}
	}
	return cells
}

// Nearest returns the city closest to the given point, searching the
// point's cell and its neighbours. Equal distances prefer the larger
// radius, then the earlier city.
func (l *Locator) Nearest(lat, lng float64) (CityRecord, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return CityRecord{}, false
	}

	query := s2.LatLngFromDegrees(lat, lng)
	queryCell := s2.CellIDFromLatLng(query).Parent(s2CellLevel)

	best, bestDist := -1, math.Inf(1)
	for _, cell := range cellAndNeighbors(queryCell) {
		for _, i := range l.cells[cell] {
			c := l.d.Cities[i]
			dist := float64(query.Distance(s2.LatLngFromDegrees(c.Loc.Lat, c.Loc.Lon)))
			if best >= 0 && !closer(dist, c.Radius, i, bestDist, l.d.Cities[best].Radius, best) {
				continue
			}
			best, bestDist = i, dist
		}
	}

	if best < 0 || bestDist > maxNearestDistance {
		return CityRecord{}, false
	}
	return l.d.Cities[best], true
}

// closer orders nearest-city candidates: distance, then larger radius,
// then lower index.
func closer(dist, radius float64, i int, bestDist, bestRadius float64, best int) bool {
	if dist != bestDist {
		return dist < bestDist
	}
	if radius != bestRadius {
		return radius > bestRadius
	}
	return i < best
}

// knownCity is a reference point used to spot check a full database.
type knownCity struct {
	lat, lng    float64
	wantCity    string
	wantCountry string
}

// knownCities are city centres from the gazetteer that must resolve to
// themselves in a database built from the full world file.
var knownCities = []knownCity{
	{55.7558, 37.6178, "Moscow", "Russia"},
	{35.6897, 139.6922, "Tokyo", "Japan"},
	{48.8567, 2.3522, "Paris", "France"},
	{-33.8678, 151.2100, "Sydney", "Australia"},
}

// SpotCheck resolves a fixed set of well-known city coordinates through a
// Locator and fails if any of them maps to a different city or country.
// Only meaningful for databases built from the full world gazetteer.
func (d *Dataset) SpotCheck() error {
	l := NewLocator(d)
	for _, k := range knownCities {
		c, ok := l.Nearest(k.lat, k.lng)
		if !ok {
			return eris.Errorf("spot check: no city near %v,%v, want %s", k.lat, k.lng, k.wantCity)
		}
		if c.Name != k.wantCity || d.Country(c) != k.wantCountry {
			return eris.Errorf("spot check: %v,%v resolved to %s (%s), want %s (%s)",
				k.lat, k.lng, c.Name, d.Country(c), k.wantCity, k.wantCountry)
		}
	}
	return nil
}
