package cmd

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/co2atlas/internal/project"
	"github.com/KaramelBytes/co2atlas/internal/store"
)

// resetFlags restores every flag of c and its subcommands to its default so
// values and Changed state do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execCmd(args ...string) error {
	resetFlags(rootCmd)
	// Loaded config is cached per process; reload it under the test's HOME.
	cfg = nil
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func testdata(t *testing.T, name string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("..", "testdata", name))
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	return p
}

// isolate points HOME at a temp dir so config and projects stay out of the user's.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func loadTestProject(t *testing.T, home, name string) *project.Project {
	t.Helper()
	p, err := project.LoadProject(filepath.Join(home, ".co2atlas", "projects", name))
	if err != nil {
		t.Fatalf("load project: %v", err)
	}
	return p
}

func addAll(t *testing.T, proj string) {
	t.Helper()
	for kind, file := range map[string]string{
		"emissions":  "emissions.csv",
		"sectors":    "sectors.csv",
		"population": "population.csv",
		"gdp":        "gdp.csv",
		"history":    "co2_emissions_transformed.csv",
		"forecast":   "forecasts_sarima.csv",
		"boundaries": "countries.geojson",
	} {
		runCmd(t, "add", "-p", proj, "--kind", kind, testdata(t, file))
	}
}

func TestCLI_Init_Add_List(t *testing.T) {
	home := isolate(t)

	runCmd(t, "init", "eu", "-d", "europe study", "--first-year", "2010", "--last-year", "2022")
	addAll(t, "eu")
	runCmd(t, "list", "--projects")
	runCmd(t, "list", "--datasets", "-p", "eu")

	p := loadTestProject(t, home, "eu")
	if p.Description != "europe study" {
		t.Fatalf("description = %q", p.Description)
	}
	if p.Config.FirstYear != 2010 || p.Config.LastYear != 2022 {
		t.Fatalf("year range = %d..%d", p.Config.FirstYear, p.Config.LastYear)
	}
	if len(p.Datasets) != 7 {
		t.Fatalf("expected 7 datasets, got %d", len(p.Datasets))
	}

	// A second emissions file replaces the first.
	runCmd(t, "add", "-p", "eu", "--kind", "emissions", testdata(t, "emissions.csv"))
	p = loadTestProject(t, home, "eu")
	if len(p.Datasets) != 7 {
		t.Fatalf("re-adding a kind should replace it, got %d datasets", len(p.Datasets))
	}

	if err := execCmd("init", "eu"); err == nil {
		t.Fatalf("expected error re-initializing an existing project")
	}
	if err := execCmd("init", "bad", "--first-year", "2020", "--last-year", "2010"); err == nil {
		t.Fatalf("expected error for inverted year range")
	}
}

func TestCLI_ProjectSetShow(t *testing.T) {
	home := isolate(t)

	runCmd(t, "init", "settings")
	runCmd(t, "project", "set", "-p", "settings", "substance", "CH4")
	runCmd(t, "project", "set", "-p", "settings", "chart_format", "SVG")
	runCmd(t, "project", "show", "-p", "settings")

	p := loadTestProject(t, home, "settings")
	if p.Config.Substance != "CH4" || p.Config.ChartFormat != "svg" {
		t.Fatalf("unexpected config: %+v", p.Config)
	}

	runCmd(t, "project", "set", "-p", "settings", "--clear", "substance")
	p = loadTestProject(t, home, "settings")
	if p.Config.Substance != "" {
		t.Fatalf("substance should be cleared, got %q", p.Config.Substance)
	}

	if err := execCmd("project", "set", "-p", "settings", "chart_format", "gif"); err == nil {
		t.Fatalf("expected error for unsupported chart format")
	}
	if err := execCmd("project", "set", "-p", "settings", "model", "x"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestCLI_Prepare_Render_Export(t *testing.T) {
	home := isolate(t)

	runCmd(t, "init", "site")
	addAll(t, "site")

	csvPath := filepath.Join(home, "long.csv")
	runCmd(t, "prepare", "-p", "site", "--csv", csvPath, "--top", "3")
	b, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read prepared csv: %v", err)
	}
	if !strings.Contains(string(b), "Germany") {
		t.Fatalf("prepared csv lacks Germany:\n%s", b)
	}

	runCmd(t, "render", "-p", "site", "--workers", "2")
	siteDir := filepath.Join(home, ".co2atlas", "projects", "site", "site")
	for _, name := range []string{"index.html", "report.md", "pages.json"} {
		if _, err := os.Stat(filepath.Join(siteDir, name)); err != nil {
			t.Fatalf("expected %s in rendered site: %v", name, err)
		}
	}
	p := loadTestProject(t, home, "site")
	run, ok := p.LastRun()
	if !ok {
		t.Fatalf("render run not recorded")
	}
	if run.Pages == 0 || run.Charts == 0 || run.Format != "png" {
		t.Fatalf("unexpected run: %+v", run)
	}

	xlsx := filepath.Join(home, "out", "atlas.xlsx")
	runCmd(t, "export", "-p", "site", "-o", xlsx)
	if _, err := os.Stat(xlsx); err != nil {
		t.Fatalf("expected workbook: %v", err)
	}

	runCmd(t, "cluster", "-p", "site", "--year", "2020", "-k", "2")
	runCmd(t, "sectors", "-p", "site", "--country", "Germany")
	runCmd(t, "forecast", "-p", "site")
}

func TestCLI_ProjectFirstYearReachesAnalyses(t *testing.T) {
	home := isolate(t)

	runCmd(t, "init", "recent")
	addAll(t, "recent")
	runCmd(t, "project", "set", "-p", "recent", "first_year", "2012")
	runCmd(t, "render", "-p", "recent")

	b, err := os.ReadFile(filepath.Join(home, ".co2atlas", "projects", "recent", "site", "report.md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(b)
	for _, want := range []string{
		"Average emissions per million USD of GDP since 2012.",
		"GDP efficiency vs emissions per capita (2012–2022)",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report lacks %q", want)
		}
	}
	if strings.Contains(report, "since 1970") {
		t.Fatalf("report still uses the default first year")
	}
}

func TestCLI_RenderWithoutEmissionsFails(t *testing.T) {
	isolate(t)

	runCmd(t, "init", "empty")
	runCmd(t, "add", "-p", "empty", "--kind", "population", testdata(t, "population.csv"))
	err := execCmd("render", "-p", "empty")
	if !errors.Is(err, project.ErrNoDatasets) {
		t.Fatalf("expected ErrNoDatasets, got %v", err)
	}
}

func TestCLI_IngestQuery(t *testing.T) {
	home := isolate(t)
	db := filepath.Join(home, "warehouse", "atlas.db")

	runCmd(t, "init", "wh")
	addAll(t, "wh")

	err := execCmd("query", "--db", db, "Germany")
	if !errors.Is(err, store.ErrNoIngest) {
		t.Fatalf("expected ErrNoIngest before ingest, got %v", err)
	}

	runCmd(t, "ingest", "-p", "wh", "--db", db)
	runCmd(t, "query", "--db", db, "DEU")
	runCmd(t, "query", "--db", db, "--rank", "2022", "--limit", "2")

	if err := execCmd("query", "--db", db); err == nil {
		t.Fatalf("expected error without country or --rank")
	}
	if err := execCmd("query", "--db", db, "--rank", "1900"); err == nil {
		t.Fatalf("expected error for a year without data")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolate(t)

	runCmd(t, "config", "set", "kmeans_k", "4")
	runCmd(t, "config", "set", "files.gdp", "my-gdp.csv")
	runCmd(t, "config", "set", "snapshot_years", "2022,1990,2010")
	runCmd(t, "config", "show")

	b, err := os.ReadFile(filepath.Join(home, ".co2atlas", "config.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(b)
	for _, want := range []string{"kmeans_k: 4", "gdp: my-gdp.csv", "- 1990"} {
		if !strings.Contains(s, want) {
			t.Fatalf("config.yaml missing %q:\n%s", want, s)
		}
	}
	if err := execCmd("config", "set", "chart_format", "gif"); err == nil {
		t.Fatalf("expected error for unsupported chart format")
	}
	if err := execCmd("config", "set", "files.weather", "x.csv"); err == nil {
		t.Fatalf("expected error for unknown dataset kind")
	}
}

func TestCLI_FetchRetriesIntoDataDir(t *testing.T) {
	home := isolate(t)
	body, err := os.ReadFile(testdata(t, "population.csv"))
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dataDir := filepath.Join(home, "data")
	runCmd(t, "config", "set", "data_dir", dataDir)
	runCmd(t, "config", "set", "retry_base_delay_ms", "1")
	runCmd(t, "config", "set", "retry_max_delay_ms", "5")
	runCmd(t, "config", "set", "sources.population", srv.URL+"/world_population.csv")
	runCmd(t, "fetch", "--kind", "population")

	got, err := os.ReadFile(filepath.Join(dataDir, "world_population.csv"))
	if err != nil {
		t.Fatalf("fetched file missing: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("fetched content differs")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}

	if err := execCmd("fetch", "--kind", "gdp"); err == nil {
		t.Fatalf("expected error for a kind without source")
	}
}

func TestCLI_ProfileAttach(t *testing.T) {
	home := isolate(t)

	runCmd(t, "init", "prof")
	runCmd(t, "add", "-p", "prof", "--kind", "emissions", testdata(t, "emissions.csv"))
	runCmd(t, "profile", "-p", "prof", "--attach", "emissions")

	out := filepath.Join(home, "gdp.profile.md")
	runCmd(t, "profile", testdata(t, "gdp.csv"), "-o", out, "--sample-rows", "2")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected profile file: %v", err)
	}

	p := loadTestProject(t, home, "prof")
	d, ok := p.DatasetFor("emissions")
	if !ok || d.Profile == "" {
		t.Fatalf("profile not attached: %+v", d)
	}

	if err := execCmd("profile", "--attach", testdata(t, "gdp.csv")); err == nil {
		t.Fatalf("expected error for --attach without --project")
	}
}
