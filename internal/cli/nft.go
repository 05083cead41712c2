package cli

import (
	"github.com/spf13/cobra"
)

var nftCmd = &cobra.Command{
	Use:   "nft",
	Short: "Per-mint operations",
}

var nftCacheCmd = &cobra.Command{
	Use:   "cache <mint>",
	Short: "Onboard a mint: metadata cache, migration and history backfill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		result, err := a.Cacher.CacheNFT(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

func init() {
	nftCmd.AddCommand(nftCacheCmd)
}
