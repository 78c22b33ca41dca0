package cmd

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/chart"
	"github.com/KaramelBytes/co2atlas/internal/forecast"
)

var forecastProject string

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Compare actual European emissions with the SARIMA forecast",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := loadBundle(cmd.Context(), forecastProject)
		if err != nil {
			return err
		}
		s, err := forecast.Build(b.Data.History, b.Data.Forecast)
		if err != nil {
			return err
		}
		actual, predicted := map[int]float64{}, map[int]float64{}
		for _, p := range s.Actual {
			actual[p.Year] = p.Value
		}
		for _, p := range s.Predicted {
			predicted[p.Year] = p.Value
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Year", "Actual", "Predicted"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		cell := func(m map[int]float64, y int) string {
			if v, ok := m[y]; ok {
				return chart.FormatNumber(v)
			}
			return ""
		}
		for _, y := range s.Years() {
			table.Append([]string{strconv.Itoa(y), cell(actual, y), cell(predicted, y)})
		}
		table.Render()

		sum := s.Summarize()
		if !math.IsNaN(sum.ChangePct) {
			trend := "rise"
			if sum.Declining {
				trend = "decline"
			}
			fmt.Printf("%s Forecast %d vs actual %d: %+.1f%% (%s)\n", okMark("✓"), sum.LastPredictedYear, sum.LastActualYear, sum.ChangePct, trend)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.Flags().StringVarP(&forecastProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
}
