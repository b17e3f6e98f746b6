package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohortfit/cohortfit/internal/store"
)

func init() {
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newConvertCmd())
}

func newAddCmd() *cobra.Command {
	var (
		created   string
		converted string
	)

	cmd := &cobra.Command{
		Use:   "add <group>",
		Short: "Record a unit",
		Long: `Record one unit in a group. --created defaults to now; pass
--converted when the conversion time is already known.

Examples:
  cohortfit add trial-jan
  cohortfit add trial-jan --created 2026-01-05T00:00:00Z --converted 2026-01-12T09:30:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			createdAt := time.Now()
			if created != "" {
				t, err := time.Parse(time.RFC3339, created)
				if err != nil {
					return fmt.Errorf("invalid --created: %w", err)
				}
				createdAt = t
			}

			var convertedAt *time.Time
			if converted != "" {
				t, err := time.Parse(time.RFC3339, converted)
				if err != nil {
					return fmt.Errorf("invalid --converted: %w", err)
				}
				convertedAt = &t
			}

			return withStore(func(s store.Store) error {
				e, err := s.AddEvent(context.Background(), args[0], createdAt, convertedAt)
				if err != nil {
					return err
				}
				fmt.Printf("Recorded unit %d in group '%s'\n", e.ID, e.Group)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&created, "created", "", "creation time as RFC3339 (default: now)")
	cmd.Flags().StringVar(&converted, "converted", "", "conversion time as RFC3339")

	return cmd
}

func newConvertCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "convert <id>",
		Short: "Mark a unit converted",
		Long: `Mark a stored unit as converted. --at defaults to now.

Example:
  cohortfit convert 42 --at 2026-02-01T08:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid unit id: %s", args[0])
			}

			when := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				when = t
			}

			return withStore(func(s store.Store) error {
				if err := s.MarkConverted(context.Background(), id, when); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("unit %d not found", id)
					}
					return err
				}
				fmt.Printf("Marked unit %d converted\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "conversion time as RFC3339 (default: now)")

	return cmd
}
