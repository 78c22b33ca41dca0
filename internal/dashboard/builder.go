package dashboard

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/cluster"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/KaramelBytes/co2atlas/internal/metrics"
	"github.com/KaramelBytes/co2atlas/internal/sectors"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for an unknown page slug.
	ErrNotFound = errors.New("page not found")
	// ErrUnavailable is returned when a page's datasets were not loaded.
	ErrUnavailable = errors.New("page data not loaded")
	// ErrYear is returned for a year the page does not offer.
	ErrYear = errors.New("year not available")
)

// ClusterYears are the reference years of the clustering analyses.
type ClusterYears struct {
	EmissionsGDP  int
	EfficiencyTo  int
	ChangeFrom    int
	ChangeTo      int
	GDPChangeFrom int
}

// Options configures page building.
type Options struct {
	TopN          int
	SnapshotYears []int
	Metrics       metrics.Options
	Cluster       cluster.Options
	ClusterYears  ClusterYears
	Sectors       sectors.Options
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		TopN:          10,
		SnapshotYears: []int{1970, 1980, 1990, 2000, 2010, 2015, 2020, 2022},
		Metrics:       metrics.DefaultOptions(),
		Cluster:       cluster.DefaultOptions(),
		ClusterYears:  ClusterYears{EmissionsGDP: 2020, EfficiencyTo: 2022, ChangeFrom: 2012, ChangeTo: 2022, GDPChangeFrom: 2010},
		Sectors:       sectors.DefaultOptions(),
	}
}

// Info describes a page for navigation.
type Info struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Available bool   `json:"available"`
	// Years lists the selectable years; empty for pages without a selector.
	Years []int `json:"years,omitempty"`
}

type pageDef struct {
	slug     string
	title    string
	selector bool
	needs    func(b *emissions.Bundle) bool
	build    func(b *Builder, year int) (*Page, error)
}

func needs(kinds ...dataset.Kind) func(*emissions.Bundle) bool {
	return func(b *emissions.Bundle) bool {
		for _, k := range kinds {
			if !b.Has(k) {
				return false
			}
		}
		return true
	}
}

var pageDefs = []pageDef{
	{slug: "overview", title: "Overview", needs: needs(), build: (*Builder).overview},
	{slug: "by-country", title: "Emissions by country", needs: needs(), build: (*Builder).byCountry},
	{slug: "by-population", title: "Emissions and population", needs: needs(dataset.KindPopulation), build: (*Builder).byPopulation},
	{slug: "gdp", title: "Emissions and GDP", needs: needs(dataset.KindGDP), build: (*Builder).gdp},
	{slug: "clustering", title: "Emission clustering", needs: needs(dataset.KindGDP, dataset.KindPopulation), build: (*Builder).clustering},
	{slug: "leading-sectors", title: "Leading sectors", needs: needs(dataset.KindSectors), build: (*Builder).leadingSectors},
	{slug: "visualization", title: "Maps by year", selector: true, needs: needs(dataset.KindBoundaries), build: (*Builder).visualization},
	{slug: "forecasts", title: "Forecasts", needs: func(b *emissions.Bundle) bool {
		return b.Has(dataset.KindHistory) || b.Has(dataset.KindForecast)
	}, build: (*Builder).forecasts},
}

// Builder builds pages from a prepared bundle. Built pages are cached; a
// Builder is safe for concurrent use.
type Builder struct {
	bundle *emissions.Bundle
	opt    Options
	log    *zap.Logger

	mu    sync.Mutex
	cache map[string]*Page
}

// NewBuilder returns a Builder over bundle.
func NewBuilder(bundle *emissions.Bundle, opt Options, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.TopN <= 0 {
		opt.TopN = 10
	}
	return &Builder{bundle: bundle, opt: opt, log: log, cache: map[string]*Page{}}
}

// Pages lists every page in navigation order.
func (b *Builder) Pages() []Info {
	out := make([]Info, 0, len(pageDefs))
	for _, d := range pageDefs {
		info := Info{Slug: d.slug, Title: d.title, Available: d.needs(b.bundle)}
		if d.selector {
			info.Years = b.snapshotYears()
		}
		out = append(out, info)
	}
	return out
}

// Page builds the page for slug. year selects the variant of selector pages;
// 0 picks the first snapshot year. Other pages ignore year.
func (b *Builder) Page(slug string, year int) (*Page, error) {
	idx := slices.IndexFunc(pageDefs, func(d pageDef) bool { return d.slug == slug })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	d := pageDefs[idx]
	if !d.needs(b.bundle) || len(b.bundle.Emissions.Years) == 0 {
		return nil, fmt.Errorf("%s: %w", slug, ErrUnavailable)
	}
	if !d.selector {
		year = 0
	} else {
		years := b.snapshotYears()
		if len(years) == 0 {
			return nil, fmt.Errorf("%s: %w", slug, ErrYear)
		}
		if year == 0 {
			year = years[0]
		}
		if !slices.Contains(years, year) {
			return nil, fmt.Errorf("%s %d: %w", slug, year, ErrYear)
		}
	}
	key := slug + "@" + strconv.Itoa(year)
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.cache[key]; ok {
		return p, nil
	}
	p, err := d.build(b, year)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", slug, err)
	}
	p.Slug, p.Year = slug, year
	if p.Title == "" {
		p.Title = d.title
	}
	b.cache[key] = p
	b.log.Debug("page built", zap.String("slug", slug), zap.Int("year", year), zap.Int("blocks", len(p.Blocks)))
	return p, nil
}

// snapshotYears returns the configured snapshot years the emissions table covers.
func (b *Builder) snapshotYears() []int {
	var out []int
	for _, y := range b.opt.SnapshotYears {
		if slices.Contains(b.bundle.Emissions.Years, y) {
			out = append(out, y)
		}
	}
	return out
}

// fig wraps a chart constructor result, logging and dropping failed figures.
func (b *Builder) fig(id, caption string, f chart.Figure, err error) Block {
	if err != nil {
		b.log.Warn("figure skipped", zap.String("figure", id), zap.Error(err))
		return Block{Kind: KindFigure}
	}
	return figure(id, caption, f)
}
