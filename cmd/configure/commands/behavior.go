package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otakon/companion/internal/config"
	"github.com/otakon/companion/internal/database"
	"github.com/otakon/companion/internal/models"
)

// NewBehaviorCmd creates the behavior command
func NewBehaviorCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "behavior <user-id>",
		Short: "Inspect or reset a user's behavior data",
		Long:  "Show a user's corrections, preferences and topic cache, or reset the record to defaults with --reset",
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

			behaviorRepo := database.NewBehaviorRepository(db)
			ctx := context.Background()

			if reset {
				if err := behaviorRepo.Upsert(ctx, userID, models.DefaultBehaviorData()); err != nil {
					return fmt.Errorf("failed to reset behavior data: %w", err)
				}
				fmt.Printf("Behavior data for user %s reset to defaults\n", userID)
				return nil
			}

			data, err := behaviorRepo.Get(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to read behavior data: %w", err)
			}
			if data == nil {
				fmt.Printf("No behavior data stored for user %s\n", userID)
				return nil
			}

			out, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render behavior data: %w", err)
			}
			fmt.Println(string(out))

			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Reset the user's behavior data to defaults")

	return cmd
}
