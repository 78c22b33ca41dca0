package cmd

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/store"
)

var (
	queryRank  int
	queryLimit int
)

var queryCmd = &cobra.Command{
	Use:   "query [country]",
	Short: "Query the SQLite warehouse",
	Long: `Query the SQLite warehouse filled by ingest. With a country (name or ISO code)
print its emissions series with population and GDP per capita; with --rank YEAR
print the countries ranked by emissions in that year.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (queryRank > 0) {
			return fmt.Errorf("give either a country or --rank YEAR")
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if _, _, err := st.LastIngest(cmd.Context()); errors.Is(err, store.ErrNoIngest) {
			return fmt.Errorf("%w: run `co2atlas ingest` first", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		if queryRank > 0 {
			unit := 1000.0
			if cfg != nil && cfg.EmissionUnitTonnes > 0 {
				unit = cfg.EmissionUnitTonnes
			}
			rows, err := st.Ranking(cmd.Context(), queryRank, queryLimit, unit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("no emissions stored for %d", queryRank)
			}
			table.SetHeader([]string{"#", "Country", "Code", "Emissions (kt)", "t per person"})
			for _, r := range rows {
				table.Append([]string{strconv.Itoa(r.Rank), r.Country, r.Code, chart.FormatNumber(r.Value), optional(r.PerCapita, 2)})
			}
			table.Render()
			return nil
		}

		name, rows, err := st.Series(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(name)
		table.SetHeader([]string{"Year", "Emissions (kt)", "Population", "GDP per capita"})
		for _, r := range rows {
			table.Append([]string{strconv.Itoa(r.Year), chart.FormatNumber(r.Value), optional(r.Population, 0), optional(r.GDPPerCapita, 0)})
		}
		table.Render()
		return nil
	},
}

func optional(v float64, prec int) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVar(&queryRank, "rank", 0, "rank countries by emissions in this year")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "rows shown with --rank (0 = all)")
	queryCmd.Flags().StringVar(&dbPathFlag, "db", "", "SQLite database path (overrides db_path)")
}
