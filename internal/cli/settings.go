package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewSettingsCmd — группа команд настроек.
func NewSettingsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage daemon settings",
	}

	cmd.AddCommand(newSettingsRetryCmd(clientFn, outputFn))
	return cmd
}

func newSettingsRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var maxAttempts int
	var maxBackoff time.Duration

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Show or update backend retry settings",
		Long: `Without flags prints the current settings. With --max-attempts and/or
--max-backoff updates them; unset flags keep their current values.
Zero means "backend default".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var update RetrySettingsUpdate
			if cmd.Flags().Changed("max-attempts") {
				update.MaxAttempts = &maxAttempts
			}
			if cmd.Flags().Changed("max-backoff") {
				ms := maxBackoff.Milliseconds()
				update.MaxBackoffMs = &ms
			}

			var (
				rs  *RetrySettings
				err error
			)
			if update.MaxAttempts == nil && update.MaxBackoffMs == nil {
				rs, err = client.RetrySettings()
			} else {
				rs, err = client.UpdateRetrySettings(update)
			}
			if err != nil {
				return err
			}

			out.KeyValues([][2]string{
				{"Max attempts", defaultLabel(int64(rs.MaxAttempts), strconv.Itoa(rs.MaxAttempts))},
				{"Max backoff", defaultLabel(rs.MaxBackoffMs, (time.Duration(rs.MaxBackoffMs) * time.Millisecond).String())},
			}, rs)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Backend attempt ceiling (0 = backend default)")
	cmd.Flags().DurationVar(&maxBackoff, "max-backoff", 0, "Maximum backend backoff, e.g. 30s (0 = backend default)")
	return cmd
}

// NewStatsCmd — группа команд статистики.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Manage processing statistics",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset counters and clear history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().ResetStats(); err != nil {
				return err
			}
			outputFn().Success("Statistics reset")
			return nil
		},
	})
	return cmd
}

func defaultLabel(v int64, s string) string {
	if v == 0 {
		return fmt.Sprintf("%s (backend default)", s)
	}
	return s
}
