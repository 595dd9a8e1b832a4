// Package citydb converts a world cities gazetteer into the compact city
// database embedded by the agglomeration solver.
//
// The database is three linked JSON files: the city list, sorted by
// estimated radius from largest to smallest, and two string tables
// (regions and countries) that city records reference by index. The three
// files must always be shipped together; an index is meaningless without
// the table written by the same run.
package citydb

import (
	"go.uber.org/zap"
)

// Calibration and filtering constants.
//
// The radius heuristic is calibrated on a single reference city (Moscow:
// roughly 15.3km across its built-up radius with a listed population of
// 17,125,000). It is a linear approximation, not measured geometry.
const (
	ReferenceRadius     = 15.3     // kilometres
	ReferencePopulation = 17125000 // people

	// MinPopulation is the inclusive cutoff below which non-capital
	// cities are dropped.
	MinPopulation = 20000
)

// Geo is a latitude/longitude pair in degrees.
//
// The positional JSON keys mirror the tuple layout the embedding side
// unmarshals into.
type Geo struct {
	Lat float64 `json:"Field0"`
	Lon float64 `json:"Field1"`
}

// CityRecord is a single entry of the city database.
// Region and Country are 0-based positions in the Regions and Countries
// tables of the same Dataset.
type CityRecord struct {
	Name    string  `json:"Field0"`
	Region  int     `json:"Field1"`
	Country int     `json:"Field2"`
	Radius  float64 `json:"Field3"`
	Loc     Geo     `json:"Field4"`
}

// Cities is a slice of CityRecord sortable by descending radius.
type Cities []CityRecord

func (c Cities) Len() int           { return len(c) }
func (c Cities) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c Cities) Less(i, j int) bool { return c[i].Radius > c[j].Radius }

// Dataset is one generation of the city database: the city list plus the
// two string tables its indices point into.
type Dataset struct {
	Cities    Cities
	Regions   []string
	Countries []string
}

// Region returns the region name a city record points to, or "" if the
// index is out of range.
func (d *Dataset) Region(c CityRecord) string {
	if c.Region < 0 || c.Region >= len(d.Regions) {
		return ""
	}
	return d.Regions[c.Region]
}

// Country returns the country name a city record points to, or "" if the
// index is out of range.
func (d *Dataset) Country(c CityRecord) string {
	if c.Country < 0 || c.Country >= len(d.Countries) {
		return ""
	}
	return d.Countries[c.Country]
}

// Radius estimates a city's effective radius in kilometres from its
// population, scaled linearly against the reference city.
func Radius(population int) float64 {
	return float64(population) * (ReferenceRadius / ReferencePopulation)
}

// Options configures a conversion run.
type Options struct {
	Logger        *zap.Logger                          // defaults to zap.L()
	DedupeRegions bool                                 // collapse regions that collide after slash cleanup
	SkipHook      func(row RawRow, reason SkipReason) // called for every dropped row
}

// Option is a functional option for configuring a conversion run.
type Option func(*Options)

// WithLogger sets the logger used for run diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithRegionDedupe makes the pipeline merge region entries whose cleaned
// text collides, remapping city indices onto the first occurrence.
func WithRegionDedupe(on bool) Option {
	return func(o *Options) {
		o.DedupeRegions = on
	}
}

// WithSkipHook registers a callback for rows the filter drops.
func WithSkipHook(fn func(row RawRow, reason SkipReason)) Option {
	return func(o *Options) {
		o.SkipHook = fn
	}
}

func defaultOptions() *Options {
	return &Options{}
}

func buildOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = zap.L()
	}
	return o
}
