// Package store keeps the prepared tables in a local SQLite database for
// ad-hoc queries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/co2atlas/internal/countries"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
)

var (
	// ErrNotFound is returned when a queried country has no rows.
	ErrNotFound = errors.New("country not found")
	// ErrNoIngest is returned before the first ingest.
	ErrNoIngest = errors.New("nothing ingested yet")
)

const schema = `
CREATE TABLE IF NOT EXISTS emissions (
	country   TEXT NOT NULL,
	code      TEXT,
	region    TEXT,
	substance TEXT NOT NULL,
	year      INTEGER NOT NULL,
	value     REAL NOT NULL,
	PRIMARY KEY (country, substance, year)
);
CREATE INDEX IF NOT EXISTS emissions_year ON emissions(year);
CREATE TABLE IF NOT EXISTS population (
	code      TEXT NOT NULL,
	name      TEXT,
	continent TEXT,
	year      INTEGER NOT NULL,
	value     REAL,
	PRIMARY KEY (code, year)
);
CREATE TABLE IF NOT EXISTS gdp (
	entity               TEXT NOT NULL,
	code                 TEXT,
	year                 INTEGER NOT NULL,
	gdp_per_capita       REAL,
	population           REAL,
	emissions_per_capita REAL,
	PRIMARY KEY (entity, year)
);
CREATE TABLE IF NOT EXISTS ingests (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	emissions  INTEGER NOT NULL,
	population INTEGER NOT NULL,
	gdp        INTEGER NOT NULL
);`

// Store is a SQLite-backed warehouse (pure Go driver modernc.org/sqlite).
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Warn("could not set WAL mode", zap.Error(err))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// IngestStats counts the rows written by one Ingest.
type IngestStats struct {
	Emissions  int `json:"emissions"`
	Population int `json:"population"`
	GDP        int `json:"gdp"`
}

// Ingest replaces the stored tables with the bundle's prepared emissions and,
// when loaded, its population and GDP rows. Everything runs in one transaction.
func (s *Store) Ingest(ctx context.Context, b *emissions.Bundle) (st IngestStats, err error) {
	if b == nil || b.Emissions == nil {
		return st, fmt.Errorf("ingest: %w", emissions.ErrNoData)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"emissions", "population", "gdp"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return st, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if st.Emissions, err = insertEmissions(ctx, tx, b.Emissions); err != nil {
		return st, err
	}
	if b.Has(dataset.KindPopulation) {
		if st.Population, err = insertPopulation(ctx, tx, b.Data.Population); err != nil {
			return st, err
		}
	}
	if b.Has(dataset.KindGDP) {
		if st.GDP, err = insertGDP(ctx, tx, b.Data.GDP); err != nil {
			return st, err
		}
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO ingests(at, emissions, population, gdp) VALUES(?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339), st.Emissions, st.Population, st.GDP); err != nil {
		return st, fmt.Errorf("record ingest: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return st, fmt.Errorf("commit: %w", err)
	}
	s.log.Info("ingested", zap.Int("emissions", st.Emissions), zap.Int("population", st.Population), zap.Int("gdp", st.GDP))
	return st, nil
}

func insertEmissions(ctx context.Context, tx *sql.Tx, t *emissions.Table) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO emissions(country, code, region, substance, year, value) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare emissions insert: %w", err)
	}
	defer stmt.Close()
	n := 0
	for _, r := range t.Rows {
		for _, y := range t.Years {
			v := r.At(y)
			if math.IsNaN(v) {
				continue
			}
			if _, err := stmt.ExecContext(ctx, r.Name, r.Code, r.Region, r.Substance, y, v); err != nil {
				return n, fmt.Errorf("insert emissions %s %d: %w", r.Name, y, err)
			}
			n++
		}
	}
	return n, nil
}

func insertPopulation(ctx context.Context, tx *sql.Tx, p *dataset.Population) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO population(code, name, continent, year, value) VALUES(?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare population insert: %w", err)
	}
	defer stmt.Close()
	n := 0
	for _, r := range p.Rows {
		if r.Code == "" {
			continue
		}
		for _, y := range p.Years {
			v, ok := r.ByYear[y]
			if !ok {
				continue
			}
			if _, err := stmt.ExecContext(ctx, r.Code, r.Name, r.Continent, y, nullable(v)); err != nil {
				return n, fmt.Errorf("insert population %s %d: %w", r.Code, y, err)
			}
			n++
		}
	}
	return n, nil
}

func insertGDP(ctx context.Context, tx *sql.Tx, g *dataset.GDP) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO gdp(entity, code, year, gdp_per_capita, population, emissions_per_capita) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare gdp insert: %w", err)
	}
	defer stmt.Close()
	n := 0
	for _, r := range g.Rows {
		if _, err := stmt.ExecContext(ctx, r.Entity, r.Code, r.Year,
			nullable(r.GDPPerCapita), nullable(r.Population), nullable(r.EmissionsPerCapita)); err != nil {
			return n, fmt.Errorf("insert gdp %s %d: %w", r.Entity, r.Year, err)
		}
		n++
	}
	return n, nil
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// SeriesRow is one year of a country's stored series.
type SeriesRow struct {
	Year  int
	Value float64
	// Population and GDPPerCapita are NaN where the source has no value.
	Population   float64
	GDPPerCapita float64
}

// Series returns a country's emissions by year, matched by ISO code or any
// known spelling of its name, with population and GDP per capita joined on code.
func (s *Store) Series(ctx context.Context, country string) (string, []SeriesRow, error) {
	name := countries.Canonical(country)
	rows, err := s.db.QueryContext(ctx, `
SELECT e.country, e.year, e.value, p.value, g.gdp_per_capita
FROM emissions e
LEFT JOIN population p ON p.code = e.code AND p.year = e.year
LEFT JOIN gdp g ON g.code = e.code AND g.year = e.year
WHERE lower(e.country) = lower(?) OR upper(e.code) = upper(?)
ORDER BY e.year`, name, strings.TrimSpace(country))
	if err != nil {
		return "", nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()
	var found string
	var out []SeriesRow
	for rows.Next() {
		var r SeriesRow
		var pop, gdp sql.NullFloat64
		if err := rows.Scan(&found, &r.Year, &r.Value, &pop, &gdp); err != nil {
			return "", nil, fmt.Errorf("scan series: %w", err)
		}
		r.Population, r.GDPPerCapita = orNaN(pop), orNaN(gdp)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return "", nil, err
	}
	if len(out) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, country)
	}
	return found, out, nil
}

// RankRow is one country in a yearly ranking.
type RankRow struct {
	Rank    int
	Country string
	Code    string
	Value   float64
	// PerCapita is tonnes per person, NaN without a population figure for the year.
	PerCapita float64
}

// Ranking orders countries by emissions in year, highest first. unitTonnes
// converts stored values to tonnes for the per-capita column; limit <= 0
// returns every country.
func (s *Store) Ranking(ctx context.Context, year, limit int, unitTonnes float64) ([]RankRow, error) {
	if unitTonnes <= 0 {
		unitTonnes = 1
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT e.country, e.code, e.value, p.value
FROM emissions e
LEFT JOIN population p ON p.code = e.code AND p.year = e.year
WHERE e.year = ?
ORDER BY e.value DESC, e.country
LIMIT ?`, year, limit)
	if err != nil {
		return nil, fmt.Errorf("query ranking: %w", err)
	}
	defer rows.Close()
	var out []RankRow
	for rows.Next() {
		var r RankRow
		var code sql.NullString
		var pop sql.NullFloat64
		if err := rows.Scan(&r.Country, &code, &r.Value, &pop); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		r.Code = code.String
		r.Rank = len(out) + 1
		r.PerCapita = math.NaN()
		if pop.Valid && pop.Float64 > 0 {
			r.PerCapita = r.Value * unitTonnes / pop.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Years returns the distinct years with emissions rows.
func (s *Store) Years(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT year FROM emissions ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("query years: %w", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// LastIngest returns the counts and time of the most recent ingest.
func (s *Store) LastIngest(ctx context.Context) (IngestStats, time.Time, error) {
	var st IngestStats
	var at string
	err := s.db.QueryRowContext(ctx, `SELECT at, emissions, population, gdp FROM ingests ORDER BY id DESC LIMIT 1`).
		Scan(&at, &st.Emissions, &st.Population, &st.GDP)
	if errors.Is(err, sql.ErrNoRows) {
		return st, time.Time{}, ErrNoIngest
	}
	if err != nil {
		return st, time.Time{}, fmt.Errorf("query ingests: %w", err)
	}
	t, _ := time.Parse(time.RFC3339, at)
	return st, t, nil
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
