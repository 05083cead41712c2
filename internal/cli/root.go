package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"oneoftools/internal/app"
	"oneoftools/pkg/config"
)

var (
	cfgFile   string
	logLevel  string
	cfg       *config.Config
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "boutiquectl",
	Short:         "Operate the boutique collection pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg != nil {
			return nil
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		// operator output goes to the terminal
		loaded.Logging.File = ""
		config.InitLogger(loaded.Logging)
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appHandle != nil {
			appHandle.Close()
			appHandle = nil
		}
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(floorCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(nftCmd)
}

// getApp wires the services on first use. Commands run tasks inline, the broker is only
// needed by the queue commands.
func getApp(cmd *cobra.Command) (*app.App, error) {
	if appHandle != nil {
		return appHandle, nil
	}
	a, err := app.New(cmd.Context(), cfg, app.Options{SkipBroker: true})
	if err != nil {
		return nil, err
	}
	appHandle = a
	return a, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
