package cmd

import (
	"fmt"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/project"
	"github.com/spf13/cobra"
)

var (
	addProjectName string
	addKind        string
	addDesc        string
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register a dataset file with a project",
	Long: `Register a dataset file with a project. The kind (emissions, sectors, population,
gdp, history, forecast, boundaries) is detected from the file name and header
unless --kind is given. A project keeps one file per kind; adding a second file
of the same kind replaces the first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		if addProjectName == "" {
			return errNoProject
		}
		var kind dataset.Kind
		if addKind != "" {
			k, err := dataset.ParseKind(addKind)
			if err != nil {
				return err
			}
			kind = k
		}
		projDir, err := resolveProjectDirByName(addProjectName)
		if err != nil {
			return err
		}
		p, err := project.LoadProject(projDir)
		if err != nil {
			return err
		}
		added, replaced, err := p.AddDataset(file, kind, addDesc)
		if err != nil {
			return err
		}
		if err := p.Save(); err != nil {
			return err
		}
		if replaced != nil {
			fmt.Printf("%s Replaced %s dataset %s\n", warnMark("⚠"), replaced.Kind, replaced.Name)
		}
		fmt.Printf("%s Dataset added: %s (%s)\n", okMark("✓"), added.Name, added.Kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addProjectName, "project", "p", "", "project name")
	addCmd.Flags().StringVar(&addKind, "kind", "", "dataset kind (detected when omitted)")
	addCmd.Flags().StringVar(&addDesc, "desc", "", "dataset description")
}
