package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/export"
	"github.com/KaramelBytes/co2atlas/internal/utils"
)

var (
	exportProject string
	exportPath    string
	exportYear    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the analysis tables to an XLSX workbook",
	Long: `Write the analysis tables to an XLSX workbook with the sheets Averages,
PerCapita<year>, GDPIntensity, Clusters, Sectors and Forecast. Sheets whose
datasets are not loaded are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, p, err := loadBundle(cmd.Context(), exportProject)
		if err != nil {
			return err
		}
		path := exportPath
		if path == "" {
			path = filepath.Join(outputDir(), "co2atlas.xlsx")
		}
		if err := utils.EnsureProjectDir(filepath.Dir(path)); err != nil {
			return err
		}
		opt := export.DefaultOptions()
		if exportYear > 0 {
			opt.PerCapitaYear = exportYear
		}
		opt.Metrics = metricsOptions(p)
		opt.Cluster = clusterOptions(p)
		opt.Sectors = sectorsOptions(p)
		opt.Logger = log
		res, err := export.Workbook(b, path, opt)
		if err != nil {
			return err
		}
		if len(res.Skipped) > 0 {
			fmt.Printf("%s Skipped (data not loaded): %s\n", warnMark("⚠"), strings.Join(res.Skipped, ", "))
		}
		fmt.Printf("%s Wrote %d sheets to %s\n", okMark("✓"), len(res.Sheets), res.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "workbook path (default <output_dir>/co2atlas.xlsx)")
	exportCmd.Flags().IntVar(&exportYear, "year", 0, "year of the per-capita sheet (default 2022)")
}
