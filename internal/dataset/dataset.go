package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/KaramelBytes/co2atlas/internal/geo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Kind names one of the input datasets.
type Kind string

const (
	KindEmissions  Kind = "emissions"
	KindSectors    Kind = "sectors"
	KindPopulation Kind = "population"
	KindGDP        Kind = "gdp"
	KindHistory    Kind = "history"
	KindForecast   Kind = "forecast"
	KindBoundaries Kind = "boundaries"
)

// Kinds returns every known kind in load order.
func Kinds() []Kind {
	return []Kind{KindEmissions, KindSectors, KindPopulation, KindGDP, KindHistory, KindForecast, KindBoundaries}
}

var (
	// ErrUnknownKind indicates a dataset kind no loader is registered for.
	ErrUnknownKind = errors.New("unknown dataset kind")
	// ErrMissingColumn indicates a required column is absent from a file.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUndetected indicates no loader recognised a file's header.
	ErrUndetected = errors.New("cannot detect dataset kind")
)

// ParseKind validates a user-supplied kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Set holds every loaded dataset. Absent datasets are nil.
type Set struct {
	Emissions  *Wide
	Sectors    *Wide
	Population *Population
	GDP        *GDP
	History    Series
	Forecast   Series
	Boundaries *geo.Atlas
}

// Has reports whether the dataset of the given kind was loaded.
func (s *Set) Has(k Kind) bool {
	if s == nil {
		return false
	}
	switch k {
	case KindEmissions:
		return s.Emissions != nil
	case KindSectors:
		return s.Sectors != nil
	case KindPopulation:
		return s.Population != nil
	case KindGDP:
		return s.GDP != nil
	case KindHistory:
		return len(s.History) > 0
	case KindForecast:
		return len(s.Forecast) > 0
	case KindBoundaries:
		return s.Boundaries != nil
	}
	return false
}

func (s *Set) take(k Kind, from *Set) {
	switch k {
	case KindEmissions:
		s.Emissions = from.Emissions
	case KindSectors:
		s.Sectors = from.Sectors
	case KindPopulation:
		s.Population = from.Population
	case KindGDP:
		s.GDP = from.GDP
	case KindHistory:
		s.History = from.History
	case KindForecast:
		s.Forecast = from.Forecast
	case KindBoundaries:
		s.Boundaries = from.Boundaries
	}
}

// Loader reads one dataset kind from disk.
type Loader interface {
	Kind() Kind
	// Detect reports whether a file with this name and header looks like the kind.
	Detect(filename string, header []string) bool
	Load(path string, into *Set) error
}

var registry = map[Kind]Loader{}

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry[l.Kind()] = l
}

// LoaderFor returns the loader registered for kind.
func LoaderFor(k Kind) (Loader, error) {
	l, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return l, nil
}

func init() {
	Register(wideLoader{kind: KindEmissions})
	Register(wideLoader{kind: KindSectors})
	Register(populationLoader{})
	Register(gdpLoader{})
	Register(seriesLoader{kind: KindHistory})
	Register(seriesLoader{kind: KindForecast})
	Register(boundariesLoader{})
}

// LoadFile loads a single dataset of the given kind.
func LoadFile(k Kind, path string) (*Set, error) {
	l, err := LoaderFor(k)
	if err != nil {
		return nil, err
	}
	set := &Set{}
	if err := l.Load(path, set); err != nil {
		return nil, fmt.Errorf("load %s from %s: %w", k, filepath.Base(path), err)
	}
	return set, nil
}

// LoadAll loads every dataset in paths concurrently. Paths with an empty value are skipped.
func LoadAll(ctx context.Context, paths map[Kind]string, log *zap.Logger) (*Set, error) {
	if log == nil {
		log = zap.NewNop()
	}
	set := &Set{}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for k, path := range paths {
		if path == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, err := LoadFile(k, path)
			if err != nil {
				return err
			}
			mu.Lock()
			set.take(k, part)
			mu.Unlock()
			log.Debug("dataset loaded", zap.String("kind", string(k)), zap.String("path", path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// Detect guesses the kind of a file from its name and header row.
func Detect(path string) (Kind, error) {
	header, err := readHeader(path)
	if err != nil {
		return "", err
	}
	// Sectors first: its header is a superset of the emissions header.
	for _, k := range []Kind{KindSectors, KindEmissions, KindPopulation, KindGDP, KindForecast, KindHistory, KindBoundaries} {
		if registry[k].Detect(filepath.Base(path), header) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUndetected, filepath.Base(path))
}

func readHeader(path string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".tsv" && ext != ".txt" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = sniffDelimiter(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = cleanHeader(header[i])
	}
	return header, nil
}

// YearsOf returns the sorted keys of a year-indexed map.
func YearsOf(m map[int]float64) []int {
	out := make([]int, 0, len(m))
	for y := range m {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}
