package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/tourdesk/internal/booking"
	"github.com/example/tourdesk/internal/config"
	"github.com/example/tourdesk/internal/db"
	"github.com/example/tourdesk/internal/maintenance"
)

func newSweepCmd() *cobra.Command {
	var (
		configPath  string
		expiredOnly bool
		emptyOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the queue maintenance passes once and exit",
		Long: `Runs the maintenance sweeps against the tour queue: cancels tours whose
departure has passed, then removes queue entries for tours with no sessions
left. Use --expired or --empty to run a single pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath, expiredOnly, emptyOnly)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tourdesk.yaml", "path to Tourdesk config file")
	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "only process expired tours")
	cmd.Flags().BoolVar(&emptyOnly, "empty", false, "only remove empty tours")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string, expiredOnly, emptyOnly bool) error {
	out := cmd.OutOrStdout()
	if expiredOnly && emptyOnly {
		return fmt.Errorf("--expired and --empty are mutually exclusive")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	q := buildQueue(cfg, gormDB, out)
	svc, err := booking.NewService(booking.Opts{
		DB:          gormDB,
		Queue:       q,
		MaxCapacity: cfg.Scheduler.MaxCapacity,
	})
	if err != nil {
		return err
	}
	sweeper, err := maintenance.New(maintenance.Opts{
		Booking:  svc,
		Queue:    q,
		Notifier: buildNotifier(cfg),
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if !emptyOnly {
		if err := sweeper.ProcessExpiredTours(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Expired tours processed")
	}
	if !expiredOnly {
		if err := sweeper.RemoveEmptyTours(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Empty tours removed")
	}
	return nil
}
