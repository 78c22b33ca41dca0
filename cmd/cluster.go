package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/cluster"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
)

var (
	clProject  string
	clAnalysis string
	clYear     int
	clFrom     int
	clTo       int
	clK        int
	clElbow    bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster countries with k-means and print the groups",
	Long: `Cluster European countries with k-means. Analyses:
  emissions-gdp   emissions vs GDP per capita in --year (default 2020)
  efficiency      GDP per tonne vs tonnes per person, totals up to --year (default 2022)
  change          emissions change between --from and --to (default 2012–2022)
  gdp-change      GDP change vs emissions change between --from and --to (default 2010–2022)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, p, err := loadBundle(cmd.Context(), clProject)
		if err != nil {
			return err
		}
		opt := clusterOptions(p)
		if clK > 0 {
			opt.KMeans.K = clK
		}
		t := b.Emissions
		needGDP := clAnalysis != "change"
		if needGDP && (!b.Has(dataset.KindGDP) || !b.Has(dataset.KindPopulation)) {
			return fmt.Errorf("analysis %s needs the gdp and population datasets", clAnalysis)
		}
		g, pop := b.Data.GDP, b.Data.Population

		var a *cluster.Analysis
		switch clAnalysis {
		case "emissions-gdp":
			a, err = cluster.EmissionsVsGDP(t, g, pop, orYear(clYear, 2020), opt)
		case "efficiency":
			a, err = cluster.Efficiency(t, g, pop, opt.Metrics.FirstYear, orYear(clYear, 2022), opt)
		case "change":
			a, err = cluster.EmissionChange(t, orYear(clFrom, 2012), orYear(clTo, 2022), opt)
		case "gdp-change":
			a, err = cluster.GDPvsEmissionChange(t, g, pop, orYear(clFrom, 2010), orYear(clTo, 2022), opt)
		default:
			return fmt.Errorf("unknown analysis %q (use emissions-gdp, efficiency, change or gdp-change)", clAnalysis)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s %s: %d countries in %d clusters (k=%d, inertia %.3g)\n",
			okMark("✓"), a.Title, len(a.Points), a.Clusters(), a.K, a.Inertia)
		for c := 0; c < a.K; c++ {
			members := a.Members(c)
			if len(members) == 0 {
				continue
			}
			fmt.Printf("\nCluster %d\n", c)
			table := tablewriter.NewWriter(os.Stdout)
			header := []string{"Country", "Code", a.XLabel, a.YLabel}
			for _, col := range a.Columns {
				header = append(header, strings.ReplaceAll(col, "_", " "))
			}
			table.SetHeader(header)
			table.SetAutoFormatHeaders(false)
			for _, m := range members {
				row := []string{m.Name, m.Code, chart.FormatNumber(m.X), chart.FormatNumber(m.Y)}
				for _, col := range a.Columns {
					row = append(row, chart.FormatNumber(m.Values[col]))
				}
				table.Append(row)
			}
			table.Render()
		}
		if clElbow && len(a.Elbow) > 0 {
			fmt.Println("\nElbow (within-cluster sum of squares)")
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"k", "Inertia"})
			for i, v := range a.Elbow {
				table.Append([]string{strconv.Itoa(i + 1), strconv.FormatFloat(v, 'g', 4, 64)})
			}
			table.Render()
		}
		return nil
	},
}

func orYear(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.Flags().StringVarP(&clProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
	clusterCmd.Flags().StringVarP(&clAnalysis, "analysis", "a", "emissions-gdp", "analysis to run")
	clusterCmd.Flags().IntVar(&clYear, "year", 0, "reference year")
	clusterCmd.Flags().IntVar(&clFrom, "from", 0, "first year of a change analysis")
	clusterCmd.Flags().IntVar(&clTo, "to", 0, "last year of a change analysis")
	clusterCmd.Flags().IntVarP(&clK, "k", "k", 0, "number of clusters (overrides kmeans_k)")
	clusterCmd.Flags().BoolVar(&clElbow, "elbow", false, "also print the elbow curve")
}
