package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
)

var (
	prepProject string
	prepCSV     string
	prepTop     int
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Load and prepare the datasets, then print a summary",
	Long: `Load every dataset, run the shared preparation (substance filter, European
selection, name normalization, territory splits, year range) and print which
datasets were found and the largest emitters. --csv writes the prepared table
in long format (country, code, year, value).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := loadBundle(cmd.Context(), prepProject)
		if err != nil {
			return err
		}
		t := b.Emissions
		fmt.Printf("%s Prepared %d countries, %d–%d (%s)\n", okMark("✓"), len(t.Rows), first(t.Years), last(t.Years), substanceLabel(b.Options.Substance))
		for _, k := range dataset.Kinds() {
			mark := okMark("✓")
			if !b.Has(k) {
				mark = warnMark("–")
			}
			fmt.Printf("  %s %s\n", mark, k)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Country", "Code", "Average (kt)"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		for i, r := range t.Top(prepTop) {
			table.Append([]string{strconv.Itoa(i + 1), r.Name, r.Code, chart.FormatNumber(r.Value)})
		}
		table.Render()

		if prepCSV != "" {
			f, err := os.Create(prepCSV)
			if err != nil {
				return fmt.Errorf("create csv: %w", err)
			}
			defer f.Close()
			df := dataframe.LoadStructs(t.Long())
			if df.Err != nil {
				return fmt.Errorf("build long table: %w", df.Err)
			}
			if err := df.WriteCSV(f); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			fmt.Printf("%s Wrote %d rows to %s\n", okMark("✓"), df.Nrow(), prepCSV)
		}
		return nil
	},
}

func substanceLabel(s string) string {
	if s == "" {
		return "all substances"
	}
	return s
}

func first(ys []int) int {
	if len(ys) == 0 {
		return 0
	}
	return ys[0]
}

func last(ys []int) int {
	if len(ys) == 0 {
		return 0
	}
	return ys[len(ys)-1]
}

func init() {
	rootCmd.AddCommand(prepareCmd)
	prepareCmd.Flags().StringVarP(&prepProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
	prepareCmd.Flags().StringVar(&prepCSV, "csv", "", "write the prepared long table to this CSV file")
	prepareCmd.Flags().IntVar(&prepTop, "top", 10, "number of largest emitters to print")
}
