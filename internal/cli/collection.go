package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Collection lifecycle",
}

var collectionApproveCmd = &cobra.Command{
	Use:   "approve <slug>",
	Short: "Start monitoring a submitted collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		collection, err := a.Collections.Approve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, collection)
	},
}

var collectionShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Print a collection with its stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		collection, err := a.Collections.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, collection)
	},
}

var collectionAddMintCmd = &cobra.Command{
	Use:   "add-mint <slug> <mint>",
	Short: "Register a mint and move its unmonitored history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		slug, mint := args[0], args[1]
		_, created, err := a.Resolver.Register(cmd.Context(), slug, mint)
		if err != nil {
			return err
		}
		moved, err := a.Store.MigrateUntrackedEventsToTracked(cmd.Context(), mint)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: created=%t migrated=%d\n", mint, created, moved)
		return nil
	},
}

func init() {
	collectionCmd.AddCommand(collectionApproveCmd)
	collectionCmd.AddCommand(collectionShowCmd)
	collectionCmd.AddCommand(collectionAddMintCmd)
}
