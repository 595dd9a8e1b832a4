package citydb

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// RawRow is one gazetteer row as read from the source CSV, before any
// cleaning. Line is the 1-based CSV line the row started on.
type RawRow struct {
	City       string
	Region     string
	Country    string
	Population string
	Capital    string
	Lat        string
	Lng        string
	Line       int
}

// IsCapital reports whether the row carries a capital marker of any kind.
// Capitals are never dropped by the population cutoff.
func (r RawRow) IsCapital() bool {
	return r.Capital != ""
}

// SkipReason tells why the filter dropped a row.
type SkipReason int

const (
	SkipUnparsablePopulation SkipReason = iota + 1
	SkipBelowThreshold
)

func (r SkipReason) String() string {
	switch r {
	case SkipUnparsablePopulation:
		return "unparsable_population"
	case SkipBelowThreshold:
		return "below_threshold"
	default:
		return "unknown"
	}
}

// CorrectPopulation parses a population field. The source data uses '.'
// as a thousands separator in places ("17.125.000"), so every '.' is
// removed before parsing. Returns false when the remainder is not a
// non-negative base-10 integer.
func CorrectPopulation(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ""))
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Keep reports whether a row with the given corrected population survives
// the size filter.
func Keep(population int, capital bool) bool {
	return capital || population > MinPopulation
}

func parseGeo(lat, lng string) (Geo, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Geo{}, eris.Wrapf(err, "parse latitude %q", lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return Geo{}, eris.Wrapf(err, "parse longitude %q", lng)
	}
	return Geo{Lat: la, Lon: lo}, nil
}
