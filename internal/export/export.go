// Package export writes the dashboard's analysis tables to an XLSX workbook.
package export

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/KaramelBytes/co2atlas/internal/cluster"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/KaramelBytes/co2atlas/internal/forecast"
	"github.com/KaramelBytes/co2atlas/internal/metrics"
	"github.com/KaramelBytes/co2atlas/internal/sectors"
)

// Options selects the reference years and analysis settings.
type Options struct {
	PerCapitaYear int
	ClusterYear   int
	Metrics       metrics.Options
	Cluster       cluster.Options
	Sectors       sectors.Options
	Logger        *zap.Logger
}

// DefaultOptions uses 2022 for per-capita values and 2020 for the clustering.
func DefaultOptions() Options {
	return Options{
		PerCapitaYear: 2022,
		ClusterYear:   2020,
		Metrics:       metrics.DefaultOptions(),
		Cluster:       cluster.DefaultOptions(),
		Sectors:       sectors.DefaultOptions(),
	}
}

// Result lists the sheets written and the ones skipped for missing data.
type Result struct {
	Path    string
	Sheets  []string
	Skipped []string
}

type sheet struct {
	name   string
	header []string
	rows   [][]any
}

// Workbook builds every sheet the bundle has data for and saves it to path.
func Workbook(b *emissions.Bundle, path string, opt Options) (*Result, error) {
	if b == nil || b.Emissions == nil {
		return nil, fmt.Errorf("export: %w", emissions.ErrNoData)
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{Path: path}
	builders := []struct {
		name  string
		build func() (*sheet, error)
	}{
		{"Averages", func() (*sheet, error) { return averages(b), nil }},
		{fmt.Sprintf("PerCapita%d", opt.PerCapitaYear), func() (*sheet, error) { return perCapita(b, opt) }},
		{"GDPIntensity", func() (*sheet, error) { return intensity(b, opt) }},
		{"Clusters", func() (*sheet, error) { return clusters(b, opt) }},
		{"Sectors", func() (*sheet, error) { return sectorSheet(b, opt) }},
		{"Forecast", func() (*sheet, error) { return forecastSheet(b) }},
	}

	f := excelize.NewFile()
	defer f.Close()
	first := true
	for _, bld := range builders {
		s, err := bld.build()
		if errors.Is(err, errSkip) {
			log.Debug("sheet skipped", zap.String("sheet", bld.name))
			res.Skipped = append(res.Skipped, bld.name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", bld.name, err)
		}
		s.name = bld.name
		if first {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return nil, err
			}
			first = false
		} else if _, err := f.NewSheet(s.name); err != nil {
			return nil, err
		}
		if err := writeSheet(f, s); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
		res.Sheets = append(res.Sheets, s.name)
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	log.Info("workbook written", zap.String("path", path), zap.Strings("sheets", res.Sheets))
	return res, nil
}

var errSkip = errors.New("dataset not loaded")

func writeSheet(f *excelize.File, s *sheet) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range s.header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.name, cell, h); err != nil {
			return err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(s.name, col, col, 18); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(s.header), 1)
	if err := f.SetCellStyle(s.name, "A1", last, style); err != nil {
		return err
	}
	for i, r := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = cellValue(v)
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// cellValue leaves NaN and infinities as empty cells.
func cellValue(v any) any {
	if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
		return nil
	}
	return v
}

func averages(b *emissions.Bundle) *sheet {
	t := b.Emissions
	s := &sheet{header: []string{"Country", "Code", "Region", "Average (kt)"}}
	region := map[string]string{}
	for _, r := range t.Rows {
		region[r.Name] = r.Region
	}
	for _, r := range t.Ranked() {
		s.rows = append(s.rows, []any{r.Name, r.Code, region[r.Name], r.Value})
	}
	return s
}

func perCapita(b *emissions.Bundle, opt Options) (*sheet, error) {
	if !b.Has(dataset.KindPopulation) {
		return nil, errSkip
	}
	s := &sheet{header: []string{"Country", "Code", fmt.Sprintf("Tonnes per person (%d)", opt.PerCapitaYear)}}
	for _, r := range metrics.PerCapita(b.Emissions, b.Data.Population, opt.PerCapitaYear, opt.Metrics) {
		s.rows = append(s.rows, []any{r.Name, r.Code, r.Value})
	}
	return s, nil
}

func intensity(b *emissions.Bundle, opt Options) (*sheet, error) {
	if !b.Has(dataset.KindGDP) || !b.Has(dataset.KindPopulation) {
		return nil, errSkip
	}
	s := &sheet{header: []string{"Country", "Code", "GDP per capita", "Population", "Total GDP", "CO2 (t)", "t per USD", "t per million USD"}}
	for _, in := range metrics.GDPIntensity(b.Emissions, b.Data.GDP, b.Data.Population, opt.Metrics) {
		s.rows = append(s.rows, []any{in.Name, in.Code, in.GDPPerCapita, in.Population, in.TotalGDP, in.CO2, in.CO2PerDollar, in.CO2PerMillion})
	}
	return s, nil
}

func clusters(b *emissions.Bundle, opt Options) (*sheet, error) {
	if !b.Has(dataset.KindGDP) || !b.Has(dataset.KindPopulation) {
		return nil, errSkip
	}
	copt := opt.Cluster
	copt.Metrics = opt.Metrics
	a, err := cluster.EmissionsVsGDP(b.Emissions, b.Data.GDP, b.Data.Population, opt.ClusterYear, copt)
	if errors.Is(err, cluster.ErrNoData) {
		return nil, errSkip
	}
	if err != nil {
		return nil, err
	}
	s := &sheet{header: append([]string{"Country", "Code", "Cluster", a.XLabel, a.YLabel}, a.Columns...)}
	pts := append([]cluster.Point(nil), a.Points...)
	sort.SliceStable(pts, func(i, j int) bool {
		if pts[i].Cluster != pts[j].Cluster {
			return pts[i].Cluster < pts[j].Cluster
		}
		return pts[i].Name < pts[j].Name
	})
	for _, p := range pts {
		row := []any{p.Name, p.Code, p.Cluster, p.X, p.Y}
		for _, c := range a.Columns {
			row = append(row, p.Values[c])
		}
		s.rows = append(s.rows, row)
	}
	return s, nil
}

func sectorSheet(b *emissions.Bundle, opt Options) (*sheet, error) {
	if !b.Has(dataset.KindSectors) {
		return nil, errSkip
	}
	sopt := opt.Sectors
	sopt.Logger = opt.Logger
	bs, err := sectors.Analyze(b.Emissions, b.Data.Sectors, sopt)
	if err != nil {
		return nil, err
	}
	s := &sheet{header: []string{"Country", "Code", "Sector", "Total (kt)", "Share"}}
	for _, bd := range bs {
		total := bd.Total()
		for _, sec := range bd.Top(sopt.TopSectors) {
			share := math.NaN()
			if total != 0 {
				share = sec.Total / total
			}
			s.rows = append(s.rows, []any{bd.Country, bd.Code, sec.Name, sec.Total, share})
		}
	}
	return s, nil
}

func forecastSheet(b *emissions.Bundle) (*sheet, error) {
	fs, err := forecast.Build(b.Data.History, b.Data.Forecast)
	if errors.Is(err, forecast.ErrNoForecast) {
		return nil, errSkip
	}
	if err != nil {
		return nil, err
	}
	actual := map[int]float64{}
	for _, p := range fs.Actual {
		actual[p.Year] = p.Value
	}
	predicted := map[int]float64{}
	for _, p := range fs.Predicted {
		predicted[p.Year] = p.Value
	}
	s := &sheet{header: []string{"Year", "Actual", "Predicted"}}
	for _, y := range fs.Years() {
		a, ok := actual[y]
		if !ok {
			a = math.NaN()
		}
		p, ok := predicted[y]
		if !ok {
			p = math.NaN()
		}
		s.rows = append(s.rows, []any{y, a, p})
	}
	return s, nil
}
