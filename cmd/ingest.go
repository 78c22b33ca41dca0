package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/store"
	"github.com/KaramelBytes/co2atlas/internal/utils"
)

var (
	ingestProject string
	dbPathFlag    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the prepared tables into the SQLite warehouse",
	Long: `Prepare the datasets and replace the contents of the SQLite database (db_path)
with the long emissions table and, when loaded, the population and GDP rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := loadBundle(cmd.Context(), ingestProject)
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		stats, err := st.Ingest(cmd.Context(), b)
		if err != nil {
			return err
		}
		fmt.Printf("%s Ingested %d emission rows, %d population rows, %d GDP rows into %s\n",
			okMark("✓"), stats.Emissions, stats.Population, stats.GDP, dbPath())
		return nil
	},
}

func dbPath() string {
	if dbPathFlag != "" {
		return dbPathFlag
	}
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath
	}
	return "co2atlas.db"
}

func openStore() (*store.Store, error) {
	path := dbPath()
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureProjectDir(dir); err != nil {
			return nil, err
		}
	}
	return store.Open(path, log)
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
	ingestCmd.Flags().StringVar(&dbPathFlag, "db", "", "SQLite database path (overrides db_path)")
}
