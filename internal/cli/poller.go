package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd — сводка состояния демона.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show poller state, active jobs and counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Status()
			if err != nil {
				return err
			}
			out := outputFn()

			current := "-"
			if st.Stats.CurrentJob != nil {
				current = st.Stats.CurrentJob.ID
				if st.Stats.CurrentJob.Title != "" {
					current += " (" + st.Stats.CurrentJob.Title + ")"
				}
			}

			pairs := [][2]string{
				{"Polling", enabledLabel(st.Enabled)},
				{"Interval", st.PollInterval},
				{"Next poll", orDash(st.NextPollAt)},
				{"Client ID", st.ClientID},
				{"Processed", strconv.FormatInt(st.Stats.Processed, 10)},
				{"Succeeded", strconv.FormatInt(st.Stats.Succeeded, 10)},
				{"Failed", strconv.FormatInt(st.Stats.Failed, 10)},
				{"Current job", current},
				{"Last processed", orDash(st.Stats.LastProcessedAt)},
				{"Active jobs", strconv.Itoa(len(st.ActiveJobs))},
			}
			out.KeyValues(pairs, st)

			if len(st.ActiveJobs) > 0 && !out.jsonMode {
				fmt.Fprintln(out.w)
				rows := make([][]string, len(st.ActiveJobs))
				for i, j := range st.ActiveJobs {
					rows[i] = []string{j.JobID, j.State, strconv.Itoa(j.LocalAttempt), j.DispatchedAt, j.ExecutorID}
				}
				out.Table([]string{"JOB_ID", "STATE", "LOCAL_ATTEMPT", "DISPATCHED", "EXECUTOR"}, rows)
			}
			return nil
		},
	}
}

// NewHistoryCmd — история обработанных задач.
func NewHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed jobs (newest first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := clientFn().History()
			if err != nil {
				return err
			}
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}

			headers := []string{"ID", "STATUS", "TITLE", "PRICE", "TIMESTAMP", "ERROR"}
			rows := make([][]string, len(items))
			for i, it := range items {
				rows[i] = []string{it.ID, it.Status, it.Title, strconv.FormatInt(it.Price, 10), it.Timestamp, it.Error}
			}
			outputFn().Print(headers, rows, items)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries")
	return cmd
}

// NewStartCmd включает поллинг.
func NewStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Enable polling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().Start(); err != nil {
				return err
			}
			outputFn().Success("Polling enabled")
			return nil
		},
	}
}

// NewStopCmd выключает поллинг.
func NewStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Disable polling (in-flight jobs still finish)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().Stop(); err != nil {
				return err
			}
			outputFn().Success("Polling disabled")
			return nil
		},
	}
}

// NewPollCmd — один внеочередной тик.
func NewPollCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one poll tick now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFn().Poll()
			if err != nil {
				return err
			}
			out := outputFn()
			out.KeyValues([][2]string{{"Result", result}}, map[string]string{"result": result})
			return nil
		},
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
