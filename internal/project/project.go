package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/utils"
	"github.com/google/uuid"
)

const (
	projectFileName = "project.json"
)

// ErrNoDatasets is returned when a project has no emissions dataset to analyze.
var ErrNoDatasets = errors.New("project has no emissions dataset")

// Project is a study workspace persisted on disk: the datasets it analyzes
// and the history of rendered dashboards.
type Project struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Datasets    map[string]*Dataset `json:"datasets"`
	Runs        []RenderRun         `json:"runs,omitempty"`
	Config      *ProjectConfig      `json:"config"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// Not serialized: on-disk location of the project.json
	rootDir string `json:"-"`
}

// ProjectConfig overrides global settings for one project. Zero values inherit.
type ProjectConfig struct {
	Substance   string `json:"substance,omitempty"`
	FirstYear   int    `json:"first_year,omitempty"`
	LastYear    int    `json:"last_year,omitempty"`
	ChartFormat string `json:"chart_format,omitempty"`
}

// NewProject constructs an in-memory project. Call Save() to persist.
func NewProject(name, description, rootDir string) *Project {
	return &Project{
		Name:        name,
		Description: description,
		Datasets:    make(map[string]*Dataset),
		Config:      &ProjectConfig{},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		rootDir:     rootDir,
	}
}

// LoadProject loads a project.json from the provided directory.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, projectFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if p.Datasets == nil {
		p.Datasets = make(map[string]*Dataset)
	}
	if p.Config == nil {
		p.Config = &ProjectConfig{}
	}
	p.rootDir = dir
	return &p, nil
}

// RootDir returns the on-disk project directory path.
func (p *Project) RootDir() string { return p.rootDir }

// Save writes project.json using atomic write.
func (p *Project) Save() error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	if err := utils.EnsureProjectDir(p.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(p.rootDir, projectFileName), data)
}

// AddDataset validates a file by loading it and registers it under kind. An
// empty kind is detected from the file. A project holds one file per kind, so
// re-adding a kind replaces the earlier entry, which is returned.
func (p *Project) AddDataset(path string, kind dataset.Kind, description string) (added, replaced *Dataset, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("stat dataset: %w", err)
	}
	if kind == "" {
		if kind, err = dataset.Detect(abs); err != nil {
			return nil, nil, err
		}
	}
	if _, err := dataset.LoadFile(kind, abs); err != nil {
		return nil, nil, fmt.Errorf("validate dataset: %w", err)
	}
	if old, ok := p.DatasetFor(kind); ok {
		delete(p.Datasets, old.ID)
		replaced = old
	}
	d := &Dataset{
		ID:          uuid.NewString(),
		Kind:        kind,
		Path:        abs,
		Name:        filepath.Base(abs),
		Description: description,
		Size:        info.Size(),
		AddedAt:     time.Now(),
	}
	if p.Datasets == nil {
		p.Datasets = make(map[string]*Dataset)
	}
	p.Datasets[d.ID] = d
	p.UpdatedAt = time.Now()
	return d, replaced, nil
}

// DatasetFor returns the dataset registered for kind.
func (p *Project) DatasetFor(kind dataset.Kind) (*Dataset, bool) {
	for _, d := range p.Datasets {
		if d.Kind == kind {
			return d, true
		}
	}
	return nil, false
}

// Dataset looks a dataset up by ID, name or kind.
func (p *Project) Dataset(ref string) (*Dataset, bool) {
	if d, ok := p.Datasets[ref]; ok {
		return d, true
	}
	for _, d := range p.Datasets {
		if d.Name == ref || string(d.Kind) == ref {
			return d, true
		}
	}
	return nil, false
}

// SortedDatasets returns the datasets in kind order.
func (p *Project) SortedDatasets() []*Dataset {
	order := map[dataset.Kind]int{}
	for i, k := range dataset.Kinds() {
		order[k] = i
	}
	out := make([]*Dataset, 0, len(p.Datasets))
	for _, d := range p.Datasets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind == out[j].Kind {
			return out[i].ID < out[j].ID
		}
		return order[out[i].Kind] < order[out[j].Kind]
	})
	return out
}

// Paths maps each registered kind to its file, ready for dataset.LoadAll.
func (p *Project) Paths() (map[dataset.Kind]string, error) {
	out := make(map[dataset.Kind]string, len(p.Datasets))
	for _, d := range p.Datasets {
		out[d.Kind] = d.Path
	}
	if out[dataset.KindEmissions] == "" {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrNoDatasets)
	}
	return out, nil
}

// AttachProfile stores a Markdown profile on the dataset matching ref.
func (p *Project) AttachProfile(ref, profile string) error {
	d, ok := p.Dataset(ref)
	if !ok {
		return fmt.Errorf("dataset %q not in project %s", ref, p.Name)
	}
	d.Profile = profile
	p.UpdatedAt = time.Now()
	return nil
}

// AddRun records a dashboard render.
func (p *Project) AddRun(outputDir, format string, pages, charts int) RenderRun {
	r := RenderRun{
		ID:        uuid.NewString(),
		At:        time.Now(),
		OutputDir: outputDir,
		Format:    format,
		Pages:     pages,
		Charts:    charts,
	}
	p.Runs = append(p.Runs, r)
	p.UpdatedAt = r.At
	return r
}

// LastRun returns the most recent render.
func (p *Project) LastRun() (RenderRun, bool) {
	if len(p.Runs) == 0 {
		return RenderRun{}, false
	}
	return p.Runs[len(p.Runs)-1], true
}

// List returns the names of the projects under root.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), projectFileName)); err == nil {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
