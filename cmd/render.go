package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/dashboard"
)

var (
	renderProject string
	renderWorkers int
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the dashboard as a static site",
	Long: `Render every page whose datasets are loaded into the output directory: one HTML
file per page (and per year for pages with a year selector), the charts, a
Markdown report and a pages.json index. With -p the site goes to <project>/site
unless --out is given, and the run is recorded in the project.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, p, err := loadBundle(cmd.Context(), renderProject)
		if err != nil {
			return err
		}
		format, err := chartFormat(p)
		if err != nil {
			return err
		}
		dir := outputDir()
		if p != nil && !rootCmd.PersistentFlags().Changed("out") {
			dir = filepath.Join(p.RootDir(), "site")
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		builder := dashboard.NewBuilder(b, dashboardOptions(p), log)
		res, err := dashboard.RenderSite(cmd.Context(), builder, dashboard.SiteOptions{
			Dir:     abs,
			Format:  format,
			DPI:     chartDPI(),
			Workers: renderWorkers,
		})
		if err != nil {
			return err
		}
		if len(res.Skipped) > 0 {
			fmt.Printf("%s Skipped (data not loaded): %s\n", warnMark("⚠"), strings.Join(res.Skipped, ", "))
		}
		if p != nil {
			p.AddRun(abs, format, res.Pages, res.Charts)
			if err := p.Save(); err != nil {
				return err
			}
		}
		fmt.Printf("%s Rendered %d pages and %d charts to %s\n", okMark("✓"), res.Pages, res.Charts, abs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
	renderCmd.Flags().IntVar(&renderWorkers, "workers", runtime.NumCPU(), "charts rendered in parallel")
}
