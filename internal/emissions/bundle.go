package emissions

import (
	"fmt"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
)

// Bundle is the prepared emissions table plus the auxiliary datasets every
// view joins against. It is built once and shared read-only.
type Bundle struct {
	Emissions *Table
	Data      *dataset.Set
	Options   Options
}

// BuildBundle prepares the emissions table of set.
func BuildBundle(set *dataset.Set, opt Options) (*Bundle, error) {
	if !set.Has(dataset.KindEmissions) {
		return nil, fmt.Errorf("emissions dataset is required: %w", ErrNoData)
	}
	t, err := Prepare(set.Emissions, opt)
	if err != nil {
		return nil, fmt.Errorf("prepare emissions: %w", err)
	}
	return &Bundle{Emissions: t, Data: set, Options: opt}, nil
}

// Has reports whether an auxiliary dataset is available.
func (b *Bundle) Has(k dataset.Kind) bool { return b != nil && b.Data.Has(k) }
