package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/co2atlas/internal/config"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set co2atlas configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = os.Stdout.Write(b)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk. Map entries use a dotted key:
  co2atlas config set files.gdp my-gdp.csv
  co2atlas config set sources.population https://example.org/world_population.csv
Lists are comma separated:
  co2atlas config set snapshot_years 1990,2000,2010,2022`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Printf("%s Saved config\n", okMark("✓"))
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	if kind, name, ok := strings.Cut(key, "."); ok {
		if _, err := dataset.ParseKind(name); err != nil {
			return err
		}
		switch kind {
		case "files":
			c.Files[name] = val
		case "sources":
			if c.Sources == nil {
				c.Sources = map[string]string{}
			}
			c.Sources[name] = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		return nil
	}

	ints := map[string]*int{
		"first_year":          &c.FirstYear,
		"last_year":           &c.LastYear,
		"top_n":               &c.TopN,
		"kmeans_k":            &c.KMeansK,
		"kmeans_n_init":       &c.KMeansNInit,
		"kmeans_max_iter":     &c.KMeansMaxIter,
		"elbow_max_k":         &c.ElbowMaxK,
		"chart_dpi":           &c.ChartDPI,
		"http_timeout_sec":    &c.HTTPTimeoutSec,
		"retry_max_attempts":  &c.RetryMaxAttempts,
		"retry_base_delay_ms": &c.RetryBaseDelayMs,
		"retry_max_delay_ms":  &c.RetryMaxDelayMs,
	}
	if p, ok := ints[key]; ok {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*p = i
		return nil
	}
	strs := map[string]*string{
		"data_dir":     &c.DataDir,
		"output_dir":   &c.OutputDir,
		"projects_dir": &c.ProjectsDir,
		"db_path":      &c.DBPath,
		"substance":    &c.Substance,
		"server_addr":  &c.ServerAddr,
	}
	if p, ok := strs[key]; ok {
		*p = val
		return nil
	}

	switch key {
	case "chart_format":
		v := strings.ToLower(val)
		if v != "png" && v != "svg" {
			return fmt.Errorf("invalid chart_format: %s (use png or svg)", val)
		}
		c.ChartFormat = v
	case "kmeans_seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for kmeans_seed: %v", val)
		}
		c.KMeansSeed = i
	case "emission_unit_tonnes":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for emission_unit_tonnes: %v", val)
		}
		c.EmissionUnitTonnes = f
	case "snapshot_years":
		var years []int
		for _, part := range strings.Split(val, ",") {
			y, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("invalid year in snapshot_years: %q", part)
			}
			years = append(years, y)
		}
		sort.Ints(years)
		c.SnapshotYears = years
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
