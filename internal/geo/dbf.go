package geo

import (
	"fmt"
	"strings"

	"github.com/Valentin-Kaiser/go-dbase/dbase"
)

// Attributes is the subset of the Natural Earth attribute table we join on.
type Attributes struct {
	Name      string
	Admin     string
	Continent string
	ISO3      string
}

// ReadAttributes reads the shapefile attribute table in record order,
// skipping deleted records.
func ReadAttributes(dbfPath string) ([]Attributes, error) {
	table, err := dbase.OpenTable(&dbase.Config{Filename: dbfPath, TrimSpaces: true})
	if err != nil {
		return nil, fmt.Errorf("open dbf: %w", err)
	}
	defer table.Close()

	var out []Attributes
	for !table.EOF() {
		row, err := table.Next()
		if err != nil {
			return nil, fmt.Errorf("read dbf record: %w", err)
		}
		if row.Deleted {
			continue
		}
		out = append(out, Attributes{
			Name:      field(row, "NAME"),
			Admin:     field(row, "ADMIN"),
			Continent: field(row, "CONTINENT"),
			ISO3:      field(row, "ISO_A3"),
		})
	}
	return out, nil
}

func field(row *dbase.Row, name string) string {
	v, err := row.ValueByName(name)
	if err != nil || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
