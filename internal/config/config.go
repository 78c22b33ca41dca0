package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir"`
	DBPath      string `mapstructure:"db_path" yaml:"db_path"`

	// Dataset file names relative to data_dir, keyed by dataset kind.
	Files map[string]string `mapstructure:"files" yaml:"files"`
	// Download URLs used by `fetch`, keyed by dataset kind.
	Sources map[string]string `mapstructure:"sources" yaml:"sources"`

	// Preparation
	Substance          string  `mapstructure:"substance" yaml:"substance"`
	FirstYear          int     `mapstructure:"first_year" yaml:"first_year"`
	LastYear           int     `mapstructure:"last_year" yaml:"last_year"`
	SnapshotYears      []int   `mapstructure:"snapshot_years" yaml:"snapshot_years"`
	EmissionUnitTonnes float64 `mapstructure:"emission_unit_tonnes" yaml:"emission_unit_tonnes"`
	TopN               int     `mapstructure:"top_n" yaml:"top_n"`

	// Clustering
	KMeansK       int   `mapstructure:"kmeans_k" yaml:"kmeans_k"`
	KMeansSeed    int64 `mapstructure:"kmeans_seed" yaml:"kmeans_seed"`
	KMeansNInit   int   `mapstructure:"kmeans_n_init" yaml:"kmeans_n_init"`
	KMeansMaxIter int   `mapstructure:"kmeans_max_iter" yaml:"kmeans_max_iter"`
	ElbowMaxK     int   `mapstructure:"elbow_max_k" yaml:"elbow_max_k"`

	// Rendering
	ChartFormat string `mapstructure:"chart_format" yaml:"chart_format"`
	ChartDPI    int    `mapstructure:"chart_dpi" yaml:"chart_dpi"`
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
}

// DefaultFiles maps each dataset kind to the file name the loaders expect in data_dir.
func DefaultFiles() map[string]string {
	return map[string]string{
		"emissions":  "co2_emmisions_complicated.csv",
		"sectors":    "co2_emmisions_by_sector.csv",
		"population": "world_population.csv",
		"gdp":        "co2-emissions-vs-gdp.csv",
		"history":    "co2_emissions_transformed.csv",
		"forecast":   "forecasts_sarima.csv",
		"boundaries": "ne_110m_admin_0_countries.geojson",
	}
}

// DefaultSnapshotYears are the years the population dataset publishes.
func DefaultSnapshotYears() []int {
	return []int{1970, 1980, 1990, 2000, 2010, 2015, 2020, 2022}
}

// HomeDir returns ~/.co2atlas.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".co2atlas"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.co2atlas/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := HomeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CO2ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "data")
	v.SetDefault("output_dir", "site")
	v.SetDefault("db_path", "co2atlas.db")
	v.SetDefault("files", DefaultFiles())
	v.SetDefault("sources", map[string]string{})
	v.SetDefault("substance", "CO2")
	v.SetDefault("first_year", 1970)
	v.SetDefault("last_year", 2023)
	v.SetDefault("snapshot_years", DefaultSnapshotYears())
	v.SetDefault("emission_unit_tonnes", 1000.0)
	v.SetDefault("top_n", 10)
	v.SetDefault("kmeans_k", 3)
	v.SetDefault("kmeans_seed", 42)
	v.SetDefault("kmeans_n_init", 10)
	v.SetDefault("kmeans_max_iter", 300)
	v.SetDefault("elbow_max_k", 10)
	v.SetDefault("chart_format", "png")
	v.SetDefault("chart_dpi", 96)
	v.SetDefault("server_addr", "127.0.0.1:8501")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := HomeDir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// A partial files map in the config file keeps defaults for the other kinds.
	for kind, name := range DefaultFiles() {
		if c.Files == nil {
			c.Files = map[string]string{}
		}
		if c.Files[kind] == "" {
			c.Files[kind] = name
		}
	}
	if len(c.SnapshotYears) == 0 {
		c.SnapshotYears = DefaultSnapshotYears()
	}
	// Resolve projects_dir default: ~/.co2atlas/projects
	if c.ProjectsDir == "" {
		dir, err := HomeDir()
		if err != nil {
			return nil, err
		}
		c.ProjectsDir = filepath.Join(dir, "projects")
	}
	return &c, nil
}

// DatasetPath resolves the on-disk path for a dataset kind using data_dir and files.
func (c *Global) DatasetPath(kind string) string {
	name := c.Files[kind]
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
