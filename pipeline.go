package citydb

import (
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrFinished is returned when a Pipeline is used after Finish.
var ErrFinished = eris.New("pipeline already finished")

// Stats counts what happened to the rows of one run.
type Stats struct {
	Rows                 int // rows read
	Kept                 int // rows that became city records
	UnparsablePopulation int // dropped: population is not an integer
	BelowThreshold       int // dropped: non-capital at or under MinPopulation
	RegionCollisions     int // region entries sharing cleaned text with an earlier entry
}

// pendingCity is a filtered row whose region and country are still text.
type pendingCity struct {
	name    string
	region  string
	country string
	radius  float64
	loc     Geo
}

// Pipeline holds the state of one conversion run: both dictionary
// builders and the filtered cities waiting to be indexed. Rows go in with
// Add; Finish freezes the dictionaries, indexes and sorts the cities.
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	opts      *Options
	log       *zap.Logger
	regions   *DictionaryBuilder
	countries *DictionaryBuilder
	pending   []pendingCity
	stats     Stats
	finished  bool
}

// NewPipeline creates an empty conversion run.
func NewPipeline(opts ...Option) *Pipeline {
	o := buildOptions(opts)
	return &Pipeline{
		opts:      o,
		log:       o.Logger,
		regions:   NewDictionaryBuilder(4096), // ~4000 admin regions worldwide
		countries: NewDictionaryBuilder(256),
	}
}

// Add runs one raw row through the filter and radius estimator. Rows with
// an unparsable population or below the size cutoff are dropped without
// error. A retained row with malformed coordinates is an error.
func (p *Pipeline) Add(row RawRow) error {
	if p.finished {
		return ErrFinished
	}
	p.stats.Rows++

	population, ok := CorrectPopulation(row.Population)
	if !ok {
		p.stats.UnparsablePopulation++
		p.skip(row, SkipUnparsablePopulation)
		return nil
	}
	if !Keep(population, row.IsCapital()) {
		p.stats.BelowThreshold++
		p.skip(row, SkipBelowThreshold)
		return nil
	}

	loc, err := parseGeo(row.Lat, row.Lng)
	if err != nil {
		return eris.Wrapf(err, "pipeline: line %d (%s)", row.Line, row.City)
	}

	p.pending = append(p.pending, pendingCity{
		name:    row.City,
		region:  row.Region,
		country: row.Country,
		radius:  Radius(population),
		loc:     loc,
	})
	p.regions.Add(row.Region)
	p.countries.Add(row.Country)
	p.stats.Kept++
	return nil
}

func (p *Pipeline) skip(row RawRow, reason SkipReason) {
	if ce := p.log.Check(zap.DebugLevel, "row skipped"); ce != nil {
		ce.Write(
			zap.Int("line", row.Line),
			zap.String("city", row.City),
			zap.String("population", row.Population),
			zap.Stringer("reason", reason),
		)
	}
	if p.opts.SkipHook != nil {
		p.opts.SkipHook(row, reason)
	}
}

// Stats returns the counters accumulated so far.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Finish freezes both dictionaries, replaces every city's region and
// country text with its index, sorts cities by descending radius and
// cleans the region table. Cities with equal radius keep input order.
func (p *Pipeline) Finish() (*Dataset, error) {
	if p.finished {
		return nil, ErrFinished
	}
	p.finished = true

	regions := p.regions.Finalize()
	countries := p.countries.Finalize()

	cities := make(Cities, 0, len(p.pending))
	for _, pc := range p.pending {
		ri, ok := regions.Index(pc.region)
		if !ok {
			return nil, eris.Errorf("pipeline: region %q missing from dictionary", pc.region)
		}
		ci, ok := countries.Index(pc.country)
		if !ok {
			return nil, eris.Errorf("pipeline: country %q missing from dictionary", pc.country)
		}
		cities = append(cities, CityRecord{
			Name:    pc.name,
			Region:  ri,
			Country: ci,
			Radius:  pc.radius,
			Loc:     pc.loc,
		})
	}
	p.pending = nil

	sort.Stable(cities)

	cleaned := cleanRegions(regions)
	collisions := regionCollisions(cleaned)
	for text, positions := range collisions {
		p.stats.RegionCollisions += len(positions) - 1
		raw := make([]string, len(positions))
		for i, pos := range positions {
			raw[i] = regions.At(pos)
		}
		p.log.Warn("regions collide after slash cleanup",
			zap.String("region", text),
			zap.Strings("raw", raw),
			zap.Bool("dedupe", p.opts.DedupeRegions),
		)
	}
	if p.opts.DedupeRegions && len(collisions) > 0 {
		cleaned = dedupeRegions(cleaned, cities)
	}

	return &Dataset{
		Cities:    cities,
		Regions:   cleaned,
		Countries: countries.Strings(),
	}, nil
}

// Convert reads a gazetteer CSV from r and runs the full pipeline.
func Convert(r io.Reader, opts ...Option) (*Dataset, Stats, error) {
	p := NewPipeline(opts...)
	if err := ReadRows(r, p.Add); err != nil {
		return nil, p.Stats(), err
	}
	d, err := p.Finish()
	if err != nil {
		return nil, p.Stats(), err
	}
	return d, p.Stats(), nil
}

// ConvertFile opens a possibly compressed gazetteer file and converts it.
func ConvertFile(path string, opts ...Option) (*Dataset, Stats, error) {
	r, cleanup, err := OpenInput(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer cleanup()
	return Convert(r, opts...)
}
