package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/co2atlas/internal/cluster"
	cfgpkg "github.com/KaramelBytes/co2atlas/internal/config"
	"github.com/KaramelBytes/co2atlas/internal/dashboard"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/KaramelBytes/co2atlas/internal/metrics"
	"github.com/KaramelBytes/co2atlas/internal/project"
	"github.com/KaramelBytes/co2atlas/internal/sectors"
)

func config() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// datasetPaths resolves the input files: from the project when one is named,
// else from data_dir and files. Missing optional files are left out; the
// emissions file is always included so a missing one is reported.
func datasetPaths(projectName string) (map[dataset.Kind]string, *project.Project, error) {
	if projectName != "" {
		projDir, err := resolveProjectDirByName(projectName)
		if err != nil {
			return nil, nil, err
		}
		p, err := project.LoadProject(projDir)
		if err != nil {
			return nil, nil, err
		}
		paths, err := p.Paths()
		if err != nil {
			return nil, nil, fmt.Errorf("project %s: %w", projectName, err)
		}
		return paths, p, nil
	}
	c, err := config()
	if err != nil {
		return nil, nil, err
	}
	paths := map[dataset.Kind]string{}
	for _, k := range dataset.Kinds() {
		path := c.DatasetPath(string(k))
		if path == "" {
			continue
		}
		if k != dataset.KindEmissions {
			if _, err := os.Stat(path); err != nil {
				log.Debug("dataset not found, skipping", zap.String("kind", string(k)), zap.String("path", path))
				continue
			}
		}
		paths[k] = path
	}
	return paths, nil, nil
}

// loadBundle loads every resolved dataset and runs the shared preparation.
func loadBundle(ctx context.Context, projectName string) (*emissions.Bundle, *project.Project, error) {
	if _, err := config(); err != nil {
		return nil, nil, err
	}
	paths, p, err := datasetPaths(projectName)
	if err != nil {
		return nil, nil, err
	}
	set, err := dataset.LoadAll(ctx, paths, log)
	if err != nil {
		return nil, nil, err
	}
	b, err := emissions.BuildBundle(set, emissionsOptions(p))
	if err != nil {
		return nil, nil, err
	}
	return b, p, nil
}

func emissionsOptions(p *project.Project) emissions.Options {
	opt := emissions.DefaultOptions()
	opt.Logger = log
	if cfg != nil {
		opt.Substance = cfg.Substance
		opt.FirstYear = cfg.FirstYear
		opt.LastYear = cfg.LastYear
	}
	if p != nil && p.Config != nil {
		if p.Config.Substance != "" {
			opt.Substance = p.Config.Substance
		}
		if p.Config.FirstYear > 0 {
			opt.FirstYear = p.Config.FirstYear
		}
		if p.Config.LastYear > 0 {
			opt.LastYear = p.Config.LastYear
		}
	}
	if strings.EqualFold(opt.Substance, "all") {
		opt.Substance = ""
	}
	return opt
}

// metricsOptions applies the config, then the project's first year.
func metricsOptions(p *project.Project) metrics.Options {
	opt := metrics.DefaultOptions()
	opt.Logger = log
	if cfg != nil {
		if cfg.EmissionUnitTonnes > 0 {
			opt.UnitTonnes = cfg.EmissionUnitTonnes
		}
		if cfg.FirstYear > 0 {
			opt.FirstYear = cfg.FirstYear
		}
	}
	if p != nil && p.Config != nil && p.Config.FirstYear > 0 {
		opt.FirstYear = p.Config.FirstYear
	}
	return opt
}

func clusterOptions(p *project.Project) cluster.Options {
	opt := cluster.DefaultOptions()
	opt.Metrics = metricsOptions(p)
	if cfg != nil {
		if cfg.KMeansK > 0 {
			opt.KMeans.K = cfg.KMeansK
		}
		opt.KMeans.Seed = cfg.KMeansSeed
		if cfg.KMeansNInit > 0 {
			opt.KMeans.NInit = cfg.KMeansNInit
		}
		if cfg.KMeansMaxIter > 0 {
			opt.KMeans.MaxIter = cfg.KMeansMaxIter
		}
		if cfg.ElbowMaxK > 0 {
			opt.ElbowMaxK = cfg.ElbowMaxK
		}
	}
	return opt
}

func sectorsOptions(p *project.Project) sectors.Options {
	opt := sectors.DefaultOptions()
	opt.Logger = log
	if sub := emissionsOptions(p).Substance; sub != "" {
		opt.Substance = sub
	}
	return opt
}

func dashboardOptions(p *project.Project) dashboard.Options {
	opt := dashboard.DefaultOptions()
	opt.Metrics = metricsOptions(p)
	opt.Cluster = clusterOptions(p)
	opt.Sectors = sectorsOptions(p)
	if cfg != nil {
		if cfg.TopN > 0 {
			opt.TopN = cfg.TopN
		}
		if len(cfg.SnapshotYears) > 0 {
			opt.SnapshotYears = cfg.SnapshotYears
		}
	}
	return opt
}

// chartFormat returns the configured chart format, or the project's when set.
func chartFormat(p *project.Project) (string, error) {
	format := "png"
	if cfg != nil && cfg.ChartFormat != "" {
		format = cfg.ChartFormat
	}
	if p != nil && p.Config != nil && p.Config.ChartFormat != "" && !rootCmd.PersistentFlags().Changed("format") {
		format = p.Config.ChartFormat
	}
	format = strings.ToLower(format)
	if format != "png" && format != "svg" {
		return "", fmt.Errorf("unsupported chart format %q (use png or svg)", format)
	}
	return format, nil
}

func chartDPI() int {
	if cfg != nil && cfg.ChartDPI > 0 {
		return cfg.ChartDPI
	}
	return 96
}

func outputDir() string {
	if cfg != nil && cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	return "site"
}

var errNoProject = errors.New("--project is required")
