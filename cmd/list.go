package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/KaramelBytes/co2atlas/internal/project"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	listProjects bool
	listDatasets bool
	listProjName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects or the datasets of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listProjects == listDatasets { // either both true or both false
			return fmt.Errorf("specify exactly one of --projects or --datasets")
		}
		if listProjects {
			return listAllProjects()
		}
		if listProjName == "" {
			return fmt.Errorf("--project is required when using --datasets")
		}
		projDir, err := resolveProjectDirByName(listProjName)
		if err != nil {
			return err
		}
		p, err := project.LoadProject(projDir)
		if err != nil {
			return err
		}
		ds := p.SortedDatasets()
		if len(ds) == 0 {
			fmt.Println("(no datasets)")
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Kind", "Name", "Size", "Profiled", "Added", "ID"})
		table.SetAutoWrapText(false)
		for _, d := range ds {
			profiled := "no"
			if d.Profile != "" {
				profiled = "yes"
			}
			table.Append([]string{string(d.Kind), d.Name, humanSize(d.Size), profiled, d.AddedAt.Format(time.DateOnly), d.ID[:8]})
		}
		table.Render()
		if run, ok := p.LastRun(); ok {
			fmt.Printf("Last render: %s → %s (%d pages, %d charts)\n", run.At.Format(time.DateTime), run.OutputDir, run.Pages, run.Charts)
		}
		return nil
	},
}

func listAllProjects() error {
	root, err := defaultProjectsDir()
	if err != nil {
		return err
	}
	names, err := project.List(root)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("(no projects)")
		return nil
	}
	for _, n := range names {
		fmt.Printf("- %s\n", n)
	}
	return nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listProjects, "projects", false, "list projects")
	listCmd.Flags().BoolVar(&listDatasets, "datasets", false, "list datasets in a project")
	listCmd.Flags().StringVarP(&listProjName, "project", "p", "", "project name for --datasets")
}
