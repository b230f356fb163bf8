package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/container"
	"github.com/benjarmc/portal-pji-project-sub000/internal/application/startup"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/cleanup"
)

func main() {
	root := &cobra.Command{
		Use:           "portal",
		Short:         "PJI quotation portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newQuoteCommand(), newPurgeCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wizard and its API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startup.Initialize(port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (defaults to PORT)")
	return cmd
}

func newQuoteCommand() *cobra.Command {
	var (
		tier      string
		rent      float64
		tablePath string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate the price of a plan tier for a monthly rent",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable(tablePath)
			if err != nil {
				return err
			}
			est, err := table.Estimate(tier, rent)
			if err != nil {
				return fmt.Errorf("%w (known tiers: %v)", err, table.TierNames())
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(est)
			}
			fmt.Fprintf(out, "%s  renta %.2f  →  %.2f %s\n", est.Tier, est.MonthlyRent, est.Price, est.Currency)
			return nil
		},
	}
	cmd.Flags().StringVarP(&tier, "tier", "t", "", "plan tier")
	cmd.Flags().Float64VarP(&rent, "rent", "r", 0, "monthly rent")
	cmd.Flags().StringVar(&tablePath, "prices", "", "YAML price table (defaults to the embedded one)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("tier")
	_ = cmd.MarkFlagRequired("rent")
	return cmd
}

func loadTable(path string) (*quoting.PriceTable, error) {
	if path == "" {
		return quoting.DefaultPriceTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return quoting.ParsePriceTable(data)
}

func newPurgeCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "purge-states",
		Short: "Delete expired wizard states from local storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := container.NewContainer(ctx, container.Options{})
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.CleanupWorker.RunOnce(ctx)
			if err != nil {
				return err
			}
			cleanup.NewReporter(cmd.OutOrStdout()).LogResult(res)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}
