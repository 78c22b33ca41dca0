package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/co2atlas/internal/project"
	"github.com/spf13/cobra"
)

var (
	pmProject string
	pmClear   bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage per-project settings",
}

var projectSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set or clear a project setting (substance, first_year, last_year, chart_format)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadNamedProject(pmProject)
		if err != nil {
			return err
		}
		key, val := args[0], ""
		if !pmClear {
			if len(args) < 2 || args[1] == "" {
				return fmt.Errorf("value is required unless --clear is set")
			}
			val = args[1]
		}
		if err := setProjectValue(p.Config, key, val); err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		if pmClear {
			fmt.Printf("%s Cleared %s for %s\n", okMark("✓"), key, pmProject)
		} else {
			fmt.Printf("%s Set %s for %s: %s\n", okMark("✓"), key, pmProject, val)
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a project's settings, datasets and last render",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadNamedProject(pmProject)
		if err != nil {
			return err
		}
		fmt.Printf("Project: %s\n", p.Name)
		if p.Description != "" {
			fmt.Printf("Description: %s\n", p.Description)
		}
		c := p.Config
		fmt.Printf("substance: %s\n", inherit(c.Substance))
		fmt.Printf("first_year: %s\n", inheritInt(c.FirstYear))
		fmt.Printf("last_year: %s\n", inheritInt(c.LastYear))
		fmt.Printf("chart_format: %s\n", inherit(c.ChartFormat))
		fmt.Printf("datasets: %d\n", len(p.Datasets))
		for _, d := range p.SortedDatasets() {
			fmt.Printf("- %s: %s\n", d.Kind, d.Path)
		}
		if run, ok := p.LastRun(); ok {
			fmt.Printf("last render: %s (%d pages, %d charts, %s)\n", run.OutputDir, run.Pages, run.Charts, run.Format)
		}
		return nil
	},
}

func loadNamedProject(name string) (*project.Project, error) {
	if name == "" {
		return nil, errNoProject
	}
	dir, err := resolveProjectDirByName(name)
	if err != nil {
		return nil, err
	}
	p, err := project.LoadProject(dir)
	if err != nil {
		return nil, err
	}
	if p.Config == nil {
		p.Config = &project.ProjectConfig{}
	}
	return p, nil
}

// setProjectValue sets key on c; an empty value clears it.
func setProjectValue(c *project.ProjectConfig, key, val string) error {
	year := func() (int, error) {
		if val == "" {
			return 0, nil
		}
		y, err := strconv.Atoi(val)
		if err != nil || y < 1000 {
			return 0, fmt.Errorf("invalid year for %s: %v", key, val)
		}
		return y, nil
	}
	switch key {
	case "substance":
		c.Substance = val
	case "first_year":
		y, err := year()
		if err != nil {
			return err
		}
		c.FirstYear = y
	case "last_year":
		y, err := year()
		if err != nil {
			return err
		}
		c.LastYear = y
	case "chart_format":
		v := strings.ToLower(val)
		if v != "" && v != "png" && v != "svg" {
			return fmt.Errorf("invalid chart_format: %s (use png or svg)", val)
		}
		c.ChartFormat = v
	default:
		return fmt.Errorf("unknown project key: %s", key)
	}
	if c.FirstYear > 0 && c.LastYear > 0 && c.FirstYear > c.LastYear {
		return fmt.Errorf("first_year %d is after last_year %d", c.FirstYear, c.LastYear)
	}
	return nil
}

func inherit(s string) string {
	if s == "" {
		return "(global)"
	}
	return s
}

func inheritInt(v int) string {
	if v == 0 {
		return "(global)"
	}
	return strconv.Itoa(v)
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectSetCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.PersistentFlags().StringVarP(&pmProject, "project", "p", "", "project name")
	projectSetCmd.Flags().BoolVar(&pmClear, "clear", false, "clear the setting so the global config applies")
}
