package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var floorAll bool

var floorCmd = &cobra.Command{
	Use:   "floor",
	Short: "Floor price maintenance",
}

var floorRefreshCmd = &cobra.Command{
	Use:   "refresh [slug...]",
	Short: "Recalculate floors synchronously",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}

		slugs := args
		if floorAll {
			if slugs, err = a.Collections.ApprovedSlugs(cmd.Context()); err != nil {
				return err
			}
		}
		if len(slugs) == 0 {
			return fmt.Errorf("pass at least one slug or --all")
		}

		failed := 0
		for _, slug := range slugs {
			floor, err := a.Floor.Recalculate(cmd.Context(), slug)
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", slug, err)
			case floor == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no tracked listing, floor cleared\n", slug)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s at %d lamports on %s\n", slug, floor.Mint, floor.Listing.Amount, floor.Listing.Marketplace)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d floor refreshes failed", failed, len(slugs))
		}
		return nil
	},
}

func init() {
	floorRefreshCmd.Flags().BoolVar(&floorAll, "all", false, "Refresh every approved collection")
	floorCmd.AddCommand(floorRefreshCmd)
}
