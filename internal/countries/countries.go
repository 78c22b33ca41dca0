// Package countries normalizes country names across the emissions, population,
// GDP and boundary datasets, and decides which rows belong to Europe.
package countries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var aliases = map[string]string{
	"russian federation":        "Russia",
	"moldova, republic of":      "Moldova",
	"republic of moldova":       "Moldova",
	"czech republic":            "Czechia",
	"republic of serbia":        "Serbia",
	"bosnia and herz.":          "Bosnia and Herzegovina",
	"bosnia and herzovina":      "Bosnia and Herzegovina",
	"bosnia & herzegovina":      "Bosnia and Herzegovina",
	"macedonia":                 "North Macedonia",
	"north macedonia":           "North Macedonia",
	"republic of macedonia":     "North Macedonia",
	"turkiye":                   "Turkey",
	"türkiye":                   "Turkey",
	"vatican city":              "Vatican",
	"holy see":                  "Vatican",
	"faeroe islands":            "Faroe Islands",
	"kosovo (under unscr 1244)": "Kosovo",

	"united kingdom of great britain and northern ireland": "United Kingdom",
}

// Canonical returns the name every dataset is joined on.
func Canonical(name string) string {
	n := strings.Join(strings.Fields(name), " ")
	if c, ok := aliases[strings.ToLower(n)]; ok {
		return c
	}
	return n
}

// Same reports whether two names refer to the same country.
func Same(a, b string) bool { return Canonical(a) == Canonical(b) }

var european = []string{
	"Albania", "Andorra", "Armenia", "Austria", "Azerbaijan", "Belarus", "Belgium",
	"Bosnia and Herzegovina", "Bulgaria", "Croatia", "Cyprus", "Czechia", "Denmark",
	"Estonia", "Finland", "France", "Georgia", "Germany", "Greece", "Hungary",
	"Iceland", "Ireland", "Italy", "Kazakhstan", "Kosovo", "Latvia", "Liechtenstein",
	"Lithuania", "Luxembourg", "Malta", "Moldova", "Monaco", "Montenegro",
	"Netherlands", "North Macedonia", "Norway", "Poland", "Portugal", "Romania",
	"Russia", "San Marino", "Serbia", "Slovakia", "Slovenia", "Spain", "Sweden",
	"Switzerland", "Turkey", "Ukraine", "United Kingdom", "Vatican",
}

// Catalog is a set of canonical country names.
type Catalog struct {
	names map[string]struct{}
}

// Europe returns the catalog of European countries used by the GDP views.
func Europe() *Catalog { return NewCatalog(european) }

// NewCatalog builds a catalog from arbitrary names; they are canonicalized.
func NewCatalog(names []string) *Catalog {
	c := &Catalog{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		c.names[Canonical(n)] = struct{}{}
	}
	return c
}

// Contains reports whether name (in any known spelling) is in the catalog.
func (c *Catalog) Contains(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.names[Canonical(name)]
	return ok
}

// Names returns the sorted canonical names.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the catalog size.
func (c *Catalog) Len() int { return len(c.names) }

// InEuropeRegion reports whether an emissions Region value designates Europe.
func InEuropeRegion(region string) bool {
	return strings.Contains(strings.ToLower(region), "europe")
}

// Additions are countries kept even though the emissions dataset files them
// under a non-European region. Matching is a case-insensitive substring test.
var Additions = []string{"Russian Federation", "Ukraine", "Belarus", "Moldova"}

// IsAddition reports whether name matches one of the Additions.
func IsAddition(name string) bool {
	l := strings.ToLower(name)
	for _, a := range Additions {
		if strings.Contains(l, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// Part is one successor of a dissolved territory.
type Part struct {
	Name  string
	Code  string
	Share float64
}

// Split apportions the values of a dissolved territory among its successors.
type Split struct {
	Source string
	Parts  []Part
}

// DefaultSplits returns the splits applied to the emissions data.
func DefaultSplits() []Split {
	return []Split{{
		Source: "Serbia and Montenegro",
		Parts: []Part{
			{Name: "Serbia", Code: "SRB", Share: 0.96},
			{Name: "Montenegro", Code: "MNE", Share: 0.04},
		},
	}}
}

var ErrInvalidSplit = errors.New("invalid territory split")

// Validate checks the split shares are positive and add up to one.
func (s Split) Validate() error {
	if s.Source == "" || len(s.Parts) == 0 {
		return fmt.Errorf("%w: empty source or parts", ErrInvalidSplit)
	}
	var total float64
	for _, p := range s.Parts {
		if p.Share <= 0 || p.Name == "" {
			return fmt.Errorf("%w: %s has bad part %q (%v)", ErrInvalidSplit, s.Source, p.Name, p.Share)
		}
		total += p.Share
	}
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("%w: %s shares sum to %v", ErrInvalidSplit, s.Source, total)
	}
	return nil
}
