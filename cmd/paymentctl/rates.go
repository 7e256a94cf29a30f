package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viralforge/appointment-payments/internal/adapters/cache"
	"github.com/viralforge/appointment-payments/internal/domain"
)

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Manage the rate cache",
	}
	cmd.AddCommand(ratesInvalidateCmd())
	cmd.AddCommand(ratesCheckCmd())
	return cmd
}

// parseTuple reads interpreter:scheduling:communication:interpreting.
func parseTuple(raw string) (domain.RateTuple, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return domain.RateTuple{}, fmt.Errorf("tuple must be interpreter:scheduling:communication:interpreting")
	}
	t := domain.RateTuple{
		InterpreterType:   domain.InterpreterType(parts[0]),
		SchedulingType:    domain.SchedulingType(parts[1]),
		CommunicationType: domain.CommunicationType(parts[2]),
		InterpretingType:  domain.InterpretingType(parts[3]),
	}
	return t, t.Validate()
}

func ratesInvalidateCmd() *cobra.Command {
	var redisURL, tuple string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached rates for one tuple, or all of them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if redisURL == "" {
				return fmt.Errorf("--redis-url or REDIS_URL is required")
			}
			client, err := cache.Connect(cmd.Context(), redisURL)
			if err != nil {
				return err
			}
			defer client.Close()
			rateCache := cache.NewRedisRateCache(client)
			if tuple == "" {
				if err := rateCache.DeleteAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all cached rates dropped")
				return nil
			}
			t, err := parseTuple(tuple)
			if err != nil {
				return err
			}
			if err := rateCache.Delete(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cached rates dropped for %s\n", t.Key())
			return nil
		},
	}
	cmd.Flags().StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "redis connection url")
	cmd.Flags().StringVar(&tuple, "tuple", "", "interpreter:scheduling:communication:interpreting")
	return cmd
}

// ratesCheckCmd validates a rate file the same way the rate store does.
func ratesCheckCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a YAML rate file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rates, err := loadRateFile(path)
			if err != nil {
				return err
			}
			byTuple := map[domain.RateTuple][]domain.Rate{}
			for _, r := range rates {
				byTuple[r.Tuple()] = append(byTuple[r.Tuple()], r)
			}
			for tuple, rows := range byTuple {
				if _, err := domain.NewRateCollection(tuple, rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows ok\n", tuple.Key(), len(rows))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "configs/rates.yaml", "YAML rate file")
	return cmd
}
