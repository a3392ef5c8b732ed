package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otakon/companion/internal/config"
	"github.com/otakon/companion/internal/database"
)

// NewFeedbackCmd creates the feedback command
func NewFeedbackCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "feedback <user-id>",
		Short: "List recent correction feedback for a user",
		Long:  "List the most recent correction validation outcomes recorded for a user",
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

			feedbackRepo := database.NewFeedbackRepository(db)
			records, err := feedbackRepo.ListRecent(context.Background(), userID, limit)
			if err != nil {
				return fmt.Errorf("failed to list feedback: %w", err)
			}

			if len(records) == 0 {
				fmt.Printf("No feedback recorded for user %s\n", userID)
				return nil
			}

			fmt.Printf("Recent feedback for user %s:\n", userID)
			for _, rec := range records {
				fmt.Printf("  [%s] %s\n", rec.Outcome, rec.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("    Correction: %s\n", rec.CorrectionText)
				if rec.GameTitle != "" {
					fmt.Printf("    Game: %s\n", rec.GameTitle)
				}
				if rec.ValidationReason != "" {
					fmt.Printf("    Reason: %s\n", rec.ValidationReason)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to list")

	return cmd
}
