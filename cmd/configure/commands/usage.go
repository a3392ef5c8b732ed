package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otakon/companion/internal/config"
	"github.com/otakon/companion/internal/database"
)

// NewUsageCmd creates the usage command
func NewUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage <user-id>",
		Short: "Show grounding usage for a user",
		Long:  "Show monthly web-grounding usage counters recorded for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			usageRepo := database.NewGroundingUsageRepository(db)
			records, err := usageRepo.GetAllForUser(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("failed to read grounding usage: %w", err)
			}

			if len(records) == 0 {
				fmt.Printf("No grounding usage recorded for user %s\n", userID)
				return nil
			}

			fmt.Printf("Grounding usage for user %s:\n", userID)
			for _, rec := range records {
				fmt.Printf("  %s: %d calls (updated %s)\n",
					rec.MonthYear, rec.UsageCount, rec.UpdatedAt.Format("2006-01-02 15:04:05"))
			}

			return nil
		},
	}

	return cmd
}
