package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"route-planner/internal/app"
	"route-planner/internal/config"
	"route-planner/internal/platform/obs"
	"route-planner/internal/services"
)

var (
	tenant  string
	from    string
	to      string
	forceK  int
	persist bool

	rootCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Plan every ship date in a range for one tenant",
		Long: `simulate runs clustering, last-mile and transfer planning for each date
in [--from, --to]. Dates run independently; a failed date is logged and
makes the command exit non-zero without stopping the others.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dates, err := parseDates(from, to)
			if err != nil {
				return err
			}
			return run(cmd.Context(), dates)
		},
	}
)

func init() {
	rootCmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	rootCmd.Flags().StringVar(&from, "from", "", "first ship date (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&to, "to", "", "last ship date (YYYY-MM-DD), defaults to --from")
	rootCmd.Flags().IntVar(&forceK, "k", 0, "forced cluster count, 0 for automatic")
	rootCmd.Flags().BoolVar(&persist, "persist", true, "replace stored plans for each date")
	_ = rootCmd.MarkFlagRequired("tenant")
	_ = rootCmd.MarkFlagRequired("from")
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// parseDates expands the inclusive [from, to] range; an empty to means one day.
func parseDates(from, to string) ([]time.Time, error) {
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	end := start
	if to != "" {
		if end, err = time.Parse(time.DateOnly, to); err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if end.Before(start) {
		return nil, errors.New("--to is before --from")
	}
	return services.DateRange(start, end), nil
}

func run(ctx context.Context, dates []time.Time) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sim := services.NewSimulator(a.Planner, cfg.Planning.SimulationDateWorkers, persist, logger)
	outcomes, err := sim.Run(ctx, tenant, dates, forceK)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			logger.Error("date failed", "date", o.Date.Format(time.DateOnly), "err", o.Err)
		}
	}
	logger.Info("simulation finished",
		"dates", len(outcomes), "failed", failed, "counters", a.Counters.Snapshot())

	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("simulate: %d of %d dates failed", failed, len(outcomes))
	}
	return nil
}
