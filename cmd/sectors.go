package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/sectors"
)

var (
	secProject   string
	secCountry   string
	secCountries int
	secTop       int
)

var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "Break emissions down by sector",
	Long: `Break the largest emitters' emissions down by sector and rank the sectors that
lead across them. --country shows the breakdown of a single country.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, p, err := loadBundle(cmd.Context(), secProject)
		if err != nil {
			return err
		}
		if !b.Has(dataset.KindSectors) {
			return fmt.Errorf("the sectors dataset is not loaded")
		}
		opt := sectorsOptions(p)
		if secCountries > 0 {
			opt.Countries = secCountries
		}
		if secTop > 0 {
			opt.TopSectors = secTop
		}

		if secCountry != "" {
			bd, err := sectors.ForCountry(b.Data.Sectors, secCountry, opt)
			if err != nil {
				return err
			}
			printBreakdown(bd, opt.TopSectors)
			return nil
		}

		bs, err := sectors.Analyze(b.Emissions, b.Data.Sectors, opt)
		if err != nil {
			return err
		}
		for i := range bs {
			printBreakdown(&bs[i], opt.TopSectors)
		}
		fmt.Println("\nLeading sectors")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Sector", "Countries", "Total (kt)"})
		for i, f := range sectors.LeadingFactors(bs, opt.TopSectors) {
			table.Append([]string{strconv.Itoa(i + 1), f.Sector, strconv.Itoa(f.Countries), chart.FormatNumber(f.Total)})
		}
		table.Render()
		return nil
	},
}

func printBreakdown(bd *sectors.Breakdown, top int) {
	period := ""
	if len(bd.Years) > 0 {
		period = fmt.Sprintf(" %d–%d", bd.Years[0], bd.Years[len(bd.Years)-1])
	}
	fmt.Printf("\n%s%s\n", bd.Country, period)
	if bd.Dropped > 0 {
		fmt.Printf("%s %d sector rows dropped for missing years\n", warnMark("⚠"), bd.Dropped)
	}
	total := bd.Total()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Sector", "Total (kt)", "Share"})
	for _, s := range bd.Top(top) {
		share := "–"
		if total != 0 {
			share = fmt.Sprintf("%.1f%%", s.Total/total*100)
		}
		table.Append([]string{s.Name, chart.FormatNumber(s.Total), share})
	}
	table.Render()
}

func init() {
	rootCmd.AddCommand(sectorsCmd)
	sectorsCmd.Flags().StringVarP(&secProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
	sectorsCmd.Flags().StringVar(&secCountry, "country", "", "show one country's breakdown")
	sectorsCmd.Flags().IntVar(&secCountries, "countries", 0, "number of largest emitters to break down (default 5)")
	sectorsCmd.Flags().IntVar(&secTop, "top", 0, "sectors listed per country (default 10)")
}
