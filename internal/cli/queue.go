package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oneoftools/pkg/config"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and maintain the task queues",
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge [queue...]",
	Short: "Drop every pending message; defaults to both task queues",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.RabbitMQ.Enabled() {
			return fmt.Errorf("RabbitMQ is not configured")
		}
		queues := args
		if len(queues) == 0 {
			queues = []string{cfg.RabbitMQ.TaskQueue, cfg.RabbitMQ.FloorQueue}
		}

		conn, err := config.DialRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			return err
		}
		defer conn.Close()

		for _, queue := range queues {
			purged, err := config.PurgeQueue(conn, queue)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: purged %d message(s)\n", queue, purged)
		}
		return nil
	},
}

var queueDeleteCmd = &cobra.Command{
	Use:   "delete <queue>",
	Short: "Delete a queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.RabbitMQ.Enabled() {
			return fmt.Errorf("RabbitMQ is not configured")
		}
		conn, err := config.DialRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			return err
		}
		defer conn.Close()
		return config.DeleteQueue(conn, args[0])
	},
}

func init() {
	queueCmd.AddCommand(queuePurgeCmd)
	queueCmd.AddCommand(queueDeleteCmd)
}
