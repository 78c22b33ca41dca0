package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/co2atlas/internal/profile"
	"github.com/KaramelBytes/co2atlas/internal/project"
	"github.com/spf13/cobra"
)

var (
	profProject    string
	profAttach     bool
	profOutputPath string
	profDelimiter  string
	profSampleRows int
	profMaxRows    int
	profSheetName  string
	profOutlierThr float64
)

var profileCmd = &cobra.Command{
	Use:   "profile <file|dataset>",
	Short: "Profile a CSV/XLSX dataset and print a Markdown summary",
	Long: `Profile a CSV/XLSX dataset: row counts, column kinds, year-column coverage,
numeric statistics, outliers and sample rows. With -p the argument may also be
a dataset of the project (by kind, name or ID); --attach stores the profile in
the project.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := profileOptions(profDelimiter, profSampleRows, profMaxRows, profSheetName, profOutlierThr)
		if err != nil {
			return err
		}
		path := args[0]
		var p *project.Project
		if profProject != "" {
			projDir, err := resolveProjectDirByName(profProject)
			if err != nil {
				return err
			}
			if p, err = project.LoadProject(projDir); err != nil {
				return err
			}
			if d, ok := p.Dataset(path); ok {
				path = d.Path
			}
		} else if profAttach {
			return fmt.Errorf("--attach requires --project")
		}

		rep, err := profile.File(path, opt)
		if err != nil {
			return err
		}
		md := rep.Markdown()

		written := false
		if profOutputPath != "" {
			if err := os.WriteFile(profOutputPath, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("%s Wrote profile to %s\n", okMark("✓"), profOutputPath)
			written = true
		}
		if p != nil && profAttach {
			ref := args[0]
			if _, ok := p.Dataset(ref); !ok {
				// a path, not a registered dataset
				added, _, err := p.AddDataset(path, rep.Detected, "")
				if err != nil {
					return err
				}
				ref = added.ID
			}
			if err := p.AttachProfile(ref, md); err != nil {
				return err
			}
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Printf("%s Attached profile of %s to project %s\n", okMark("✓"), filepath.Base(path), p.Name)
			written = true
		}
		if !written {
			fmt.Print(md)
		}
		return nil
	},
}

func profileOptions(delim string, sample, maxRows int, sheet string, thr float64) (profile.Options, error) {
	opt := profile.DefaultOptions()
	if sample > 0 {
		opt.SampleRows = sample
	}
	if maxRows > 0 {
		opt.MaxRows = maxRows
	}
	if thr > 0 {
		opt.OutlierThreshold = thr
	}
	opt.Sheet = sheet
	switch delim {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delim)
	}
	return opt, nil
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profProject, "project", "p", "", "project name")
	profileCmd.Flags().BoolVar(&profAttach, "attach", false, "store the profile with the project's dataset")
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "write the Markdown profile to a file")
	profileCmd.Flags().StringVar(&profDelimiter, "delimiter", "", "CSV delimiter: ',', ';' or tab (auto-detected)")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 0, "number of sample rows to include")
	profileCmd.Flags().IntVar(&profMaxRows, "max-rows", 0, "limit rows processed (0 = all)")
	profileCmd.Flags().StringVar(&profSheetName, "sheet", "", "XLSX sheet name (default: first sheet)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 0, "robust z-score above which values count as outliers")
}
