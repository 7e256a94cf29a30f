package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viralforge/appointment-payments/internal/adapters/postgres"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/contracts"
)

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Queue payment jobs",
	}
	cmd.AddCommand(jobEnqueueCmd())
	return cmd
}

func jobEnqueueCmd() *cobra.Command {
	var (
		databaseURL string
		job         contracts.JobEnvelope
	)
	cmd := &cobra.Command{
		Use:   "enqueue <job-type>",
		Short: "Write a job to the outbox for the worker to pick up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--db-url or POSTGRES_URL is required")
			}
			job.JobType = strings.TrimSpace(args[0])
			db, err := postgres.Connect(cmd.Context(), databaseURL, 2)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			repos := postgres.NewRepositories(db)
			svc := application.NewService(application.Dependencies{Jobs: repos.Outbox})
			if err := svc.EnqueueJob(cmd.Context(), job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", job.JobType)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&databaseURL, "db-url", os.Getenv("POSTGRES_URL"), "postgres connection url")
	f.StringVar(&job.AppointmentID, "appointment", "", "appointment id")
	f.StringVar(&job.NewAppointmentID, "new-appointment", "", "replacement appointment id (recreate)")
	f.StringVar(&job.CompanyID, "company", "", "company id (deposit charge)")
	f.StringVar(&job.Strategy, "strategy", "", "force a strategy")
	f.IntVar(&job.AdditionalBlockDuration, "additional-minutes", 0, "extension length in minutes")
	f.BoolVar(&job.IsShortTimeSlot, "short-time-slot", false, "appointment was booked into a short slot")
	return cmd
}
