package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/co2atlas/internal/profile"
	"github.com/KaramelBytes/co2atlas/internal/project"
	"github.com/KaramelBytes/co2atlas/internal/utils"
	"github.com/spf13/cobra"
)

var (
	pbProject    string
	pbOutDir     string
	pbDelimiter  string
	pbSampleRows int
	pbMaxRows    int
	pbSheetName  string
	pbOutlierThr float64
	pbQuiet      bool
)

var profileBatchCmd = &cobra.Command{
	Use:   "profile-batch <files...>",
	Short: "Profile several CSV/XLSX files (globs allowed) with progress",
	Long: `Profile several CSV/XLSX files. Each profile is written to <out-dir>/<name>.profile.md;
with -p the files are also registered with the project and the profiles attached.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandGlobs(args)
		if err != nil {
			return err
		}
		opt, err := profileOptions(pbDelimiter, pbSampleRows, pbMaxRows, pbSheetName, pbOutlierThr)
		if err != nil {
			return err
		}

		var p *project.Project
		if pbProject != "" {
			projDir, err := resolveProjectDirByName(pbProject)
			if err != nil {
				return err
			}
			if p, err = project.LoadProject(projDir); err != nil {
				return err
			}
		}
		outDir := pbOutDir
		if outDir == "" {
			outDir = filepath.Join(outputDir(), "profiles")
		}
		if err := utils.EnsureProjectDir(outDir); err != nil {
			return err
		}

		total := len(files)
		failed := 0
		for i, path := range files {
			if !pbQuiet {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			rep, err := profile.File(path, opt)
			if err != nil {
				// report and continue with the next file
				fmt.Printf("%s %s: %v\n", warnMark("⚠"), filepath.Base(path), err)
				failed++
				continue
			}
			md := rep.Markdown()
			base := filepath.Base(path)
			outFile := filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".profile.md")
			if err := utils.SafeWriteFile(outFile, []byte(md)); err != nil {
				return err
			}
			if p != nil {
				if rep.Detected == "" {
					fmt.Printf("%s %s: unknown dataset kind, not added to project\n", warnMark("⚠"), base)
				} else {
					added, replaced, err := p.AddDataset(path, rep.Detected, "")
					if err != nil {
						return err
					}
					if replaced != nil && !pbQuiet {
						fmt.Printf("%s Replaced %s dataset %s\n", warnMark("⚠"), replaced.Kind, replaced.Name)
					}
					if err := p.AttachProfile(added.ID, md); err != nil {
						return err
					}
				}
			}
			if !pbQuiet {
				fmt.Printf("%s Profile written to %s\n", okMark("✓"), outFile)
			}
		}
		if p != nil {
			if err := p.Save(); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be profiled", failed, total)
		}
		return nil
	},
}

// expandGlobs resolves glob patterns and literal paths, dropping duplicates.
func expandGlobs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	rootCmd.AddCommand(profileBatchCmd)
	profileBatchCmd.Flags().StringVarP(&pbProject, "project", "p", "", "register files with this project and attach the profiles")
	profileBatchCmd.Flags().StringVar(&pbOutDir, "out-dir", "", "directory for the Markdown profiles (default <output_dir>/profiles)")
	profileBatchCmd.Flags().StringVar(&pbDelimiter, "delimiter", "", "CSV delimiter: ',', ';' or tab (auto-detected)")
	profileBatchCmd.Flags().IntVar(&pbSampleRows, "sample-rows", 0, "number of sample rows to include")
	profileBatchCmd.Flags().IntVar(&pbMaxRows, "max-rows", 0, "limit rows processed per file (0 = all)")
	profileBatchCmd.Flags().StringVar(&pbSheetName, "sheet", "", "XLSX sheet name (default: first sheet)")
	profileBatchCmd.Flags().Float64Var(&pbOutlierThr, "outlier-threshold", 0, "robust z-score above which values count as outliers")
	profileBatchCmd.Flags().BoolVarP(&pbQuiet, "quiet", "q", false, "suppress progress output")
}
