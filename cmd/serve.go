package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/dashboard"
	"github.com/KaramelBytes/co2atlas/internal/server"
)

var (
	serveProject string
	serveAddr    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	Long: `Prepare the datasets once and serve the dashboard: pages at /pages/{slug},
charts rendered on demand at /charts/{slug}/{id}.{png|svg}, a JSON API under
/api/pages and /healthz. Stops gracefully on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, p, err := loadBundle(ctx, serveProject)
		if err != nil {
			return err
		}
		format, err := chartFormat(p)
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" && cfg != nil {
			addr = cfg.ServerAddr
		}
		builder := dashboard.NewBuilder(b, dashboardOptions(p), log)
		srv := server.New(builder, server.Options{
			Addr:            addr,
			Format:          format,
			DPI:             chartDPI(),
			ShutdownTimeout: 10 * time.Second,
		}, log)
		fmt.Printf("%s Serving dashboard on http://%s (Ctrl+C to stop)\n", okMark("✓"), addr)
		if err := srv.ListenAndServe(ctx); err != nil {
			return err
		}
		fmt.Printf("%s Server stopped\n", okMark("✓"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveProject, "project", "p", "", "project whose datasets to use (default: data_dir)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
}
