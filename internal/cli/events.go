package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Activity log maintenance",
}

var migrateUntrackedCmd = &cobra.Command{
	Use:   "migrate-untracked <mint>...",
	Short: "Move the unmonitored history of tracked mints into their collection log",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		for _, mint := range args {
			moved, err := a.Store.MigrateUntrackedEventsToTracked(cmd.Context(), mint)
			if err != nil {
				return fmt.Errorf("%s: %w", mint, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: moved %d event(s)\n", mint, moved)
		}
		return nil
	},
}

func init() {
	eventsCmd.AddCommand(migrateUntrackedCmd)
}
