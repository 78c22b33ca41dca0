package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/project"
)

const emissionsCSV = "Region,Country_code,Name,Substance,1970,1971\nWestern Europe,FRA,France,CO2,1,2\n"

func TestAddDatasetReplacesKind(t *testing.T) {
	tdir := t.TempDir()
	p1 := filepath.Join(tdir, "a.csv")
	p2 := filepath.Join(tdir, "b.csv")
	for _, p := range []string{p1, p2} {
		if err := os.WriteFile(p, []byte(emissionsCSV), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	proj := project.NewProject("test", "", filepath.Join(tdir, "proj"))
	first, replaced, err := proj.AddDataset(p1, "", "first")
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	if first.Kind != dataset.KindEmissions {
		t.Fatalf("detected kind = %q", first.Kind)
	}
	if replaced != nil {
		t.Fatalf("nothing to replace yet")
	}
	second, replaced, err := proj.AddDataset(p2, dataset.KindEmissions, "second")
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if replaced == nil || replaced.ID != first.ID {
		t.Fatalf("expected first dataset to be replaced")
	}
	if len(proj.Datasets) != 1 {
		t.Fatalf("datasets = %d, want 1", len(proj.Datasets))
	}
	paths, err := proj.Paths()
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if paths[dataset.KindEmissions] != second.Path {
		t.Fatalf("emissions path = %s", paths[dataset.KindEmissions])
	}
}

func TestAddDatasetRejectsWrongKind(t *testing.T) {
	tdir := t.TempDir()
	p := filepath.Join(tdir, "e.csv")
	if err := os.WriteFile(p, []byte(emissionsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	proj := project.NewProject("test", "", tdir)
	if _, _, err := proj.AddDataset(p, dataset.KindPopulation, ""); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, _, err := proj.AddDataset(filepath.Join(tdir, "missing.csv"), "", ""); err == nil {
		t.Fatalf("expected stat error")
	}
}

func TestPathsRequiresEmissions(t *testing.T) {
	proj := project.NewProject("empty", "", t.TempDir())
	if _, err := proj.Paths(); err == nil {
		t.Fatalf("expected ErrNoDatasets")
	}
}

func TestSaveLoadRoundTripWithRuns(t *testing.T) {
	tdir := t.TempDir()
	data := filepath.Join(tdir, "e.csv")
	if err := os.WriteFile(data, []byte(emissionsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(tdir, "proj")
	proj := project.NewProject("round", "desc", dir)
	if _, _, err := proj.AddDataset(data, "", ""); err != nil {
		t.Fatal(err)
	}
	if err := proj.AttachProfile("emissions", "# profile"); err != nil {
		t.Fatal(err)
	}
	run := proj.AddRun("/tmp/site", "png", 8, 30)
	if err := proj.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := project.LoadProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	last, ok := loaded.LastRun()
	if !ok || last.ID != run.ID || last.Pages != 8 {
		t.Fatalf("last run = %+v", last)
	}
	d, ok := loaded.Dataset("e.csv")
	if !ok || d.Profile != "# profile" {
		t.Fatalf("dataset by name lookup failed: %+v", d)
	}
	names, err := project.List(tdir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "proj" {
		t.Fatalf("List = %v", names)
	}
}
