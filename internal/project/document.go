package project

import (
	"time"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
)

// Dataset is a registered input file. Profile caches the Markdown profile
// written by `profile --attach`.
type Dataset struct {
	ID          string       `json:"id"`
	Kind        dataset.Kind `json:"kind"`
	Path        string       `json:"path"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Size        int64        `json:"size"`
	Profile     string       `json:"profile,omitempty"`
	AddedAt     time.Time    `json:"added_at"`
}

// RenderRun records one `render` of the project's dashboard.
type RenderRun struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	OutputDir string    `json:"output_dir"`
	Format    string    `json:"format"`
	Pages     int       `json:"pages"`
	Charts    int       `json:"charts"`
}
