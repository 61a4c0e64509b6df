package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetStuckCmd возвращает зависшие задачи в очередь.
func NewResetStuckCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return stuck jobs to the queue (jobs in flight are excluded)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := clientFn().ResetStuck()
			if err != nil {
				return err
			}
			printCount(outputFn(), "Reset %d stuck job(s)", n)
			return nil
		},
	}
}

// NewCancelPendingCmd отменяет все ожидающие задачи.
func NewCancelPendingCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "cancel-pending",
		Short: "Cancel all pending jobs in the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to cancel all pending jobs without --yes")
			}
			n, err := clientFn().CancelPending()
			if err != nil {
				return err
			}
			printCount(outputFn(), "Cancelled %d pending job(s)", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm cancellation")
	return cmd
}

// NewHealthCmd проверяет доступность очереди.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue backend health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().QueueHealth()
			if err != nil {
				return err
			}
			outputFn().KeyValues([][2]string{{"Queue", status}}, map[string]string{"status": status})
			return nil
		},
	}
}

func printCount(out *Output, format string, n int) {
	if out.jsonMode {
		out.JSON(map[string]int{"count": n})
		return
	}
	out.Success(fmt.Sprintf(format, n))
}
