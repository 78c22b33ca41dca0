package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/fetch"
)

var fetchKinds []string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the configured dataset sources into data_dir",
	Long: `Download the URLs configured under sources (kind → URL) into data_dir, stored
under the file names configured under files. Rate limits (429) and server errors
are retried with exponential backoff; Retry-After is honoured.
  co2atlas config set sources.population https://example.org/world_population.csv
  co2atlas fetch --kind population`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		sources := map[string]string{}
		for k, u := range c.Sources {
			if u != "" {
				sources[k] = u
			}
		}
		if len(fetchKinds) > 0 {
			picked := map[string]string{}
			for _, k := range fetchKinds {
				kind, err := dataset.ParseKind(k)
				if err != nil {
					return err
				}
				u, ok := sources[string(kind)]
				if !ok {
					return fmt.Errorf("no source configured for %s (set sources.%s)", kind, kind)
				}
				picked[string(kind)] = u
			}
			sources = picked
		}
		if len(sources) == 0 {
			return errors.New("no sources configured; use `co2atlas config set sources.<kind> <url>`")
		}

		d := fetch.New(
			time.Duration(c.HTTPTimeoutSec)*time.Second,
			c.RetryMaxAttempts,
			time.Duration(c.RetryBaseDelayMs)*time.Millisecond,
			time.Duration(c.RetryMaxDelayMs)*time.Millisecond,
			log,
		)
		res, err := d.All(cmd.Context(), sources, c.Files, c.DataDir)
		for _, r := range res {
			retries := ""
			if r.Attempts > 1 {
				retries = fmt.Sprintf(", %d attempts", r.Attempts)
			}
			fmt.Printf("%s %s → %s (%s%s)\n", okMark("✓"), r.Kind, r.Path, humanSize(r.Bytes), retries)
		}
		if err != nil {
			var rl *fetch.RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > 0 {
				return fmt.Errorf("%w; try again in %s", err, rl.RetryAfter)
			}
			return err
		}
		if missing := unfetched(sources); len(fetchKinds) == 0 && len(missing) > 0 {
			fmt.Printf("%s No source configured for: %s\n", warnMark("⚠"), strings.Join(missing, ", "))
		}
		return nil
	},
}

func unfetched(sources map[string]string) []string {
	var out []string
	for _, k := range dataset.Kinds() {
		if _, ok := sources[string(k)]; !ok {
			out = append(out, string(k))
		}
	}
	sort.Strings(out)
	return out
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringSliceVar(&fetchKinds, "kind", nil, "only fetch these dataset kinds")
}
