package dataset

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Population is the world population table with one value per snapshot year.
type Population struct {
	Years []int
	Rows  []PopulationRow
}

// PopulationRow holds one country's population by year.
type PopulationRow struct {
	Code      string
	Name      string
	Continent string
	ByYear    map[int]float64
}

const (
	colPopCode      = "CCA3"
	colPopName      = "Country/Territory"
	colPopContinent = "Continent"
)

var popYearRe = regexp.MustCompile(`^(\d{4}) Population$`)

// Continent returns the rows whose continent matches (case-insensitive).
func (p *Population) Continent(name string) []PopulationRow {
	var out []PopulationRow
	for _, r := range p.Rows {
		if strings.EqualFold(r.Continent, name) {
			out = append(out, r)
		}
	}
	return out
}

type populationLoader struct{}

func (populationLoader) Kind() Kind { return KindPopulation }

func (populationLoader) Detect(_ string, header []string) bool {
	if !slices.Contains(header, colPopName) {
		return false
	}
	for _, h := range header {
		if popYearRe.MatchString(h) {
			return true
		}
	}
	return false
}

func (populationLoader) Load(path string, into *Set) error {
	df, err := readFrame(path, colPopCode, colPopName, colPopContinent, "Capital")
	if err != nil {
		return err
	}
	if err := requireColumns(df, colPopCode, colPopName, colPopContinent); err != nil {
		return err
	}
	type yc struct {
		year int
		col  string
	}
	var ycs []yc
	for _, n := range df.Names() {
		m := popYearRe.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		y, _ := strconv.Atoi(m[1])
		ycs = append(ycs, yc{year: y, col: n})
	}
	if len(ycs) == 0 {
		return fmt.Errorf("%w: no \"<year> Population\" columns", ErrMissingColumn)
	}
	sort.Slice(ycs, func(i, j int) bool { return ycs[i].year < ycs[j].year })

	codes, names, conts := Strings(df, colPopCode), Strings(df, colPopName), Strings(df, colPopContinent)
	pop := &Population{Rows: make([]PopulationRow, df.Nrow())}
	for i := range pop.Rows {
		pop.Rows[i] = PopulationRow{Code: codes[i], Name: names[i], Continent: conts[i], ByYear: map[int]float64{}}
	}
	for _, c := range ycs {
		pop.Years = append(pop.Years, c.year)
		vals := Floats(df, c.col)
		for i := range pop.Rows {
			pop.Rows[i].ByYear[c.year] = vals[i]
		}
	}
	into.Population = pop
	return nil
}
