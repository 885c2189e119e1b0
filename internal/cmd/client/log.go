package client

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// NewLogCommand constructs the `log` command group, which reads the ring
// buffer of a running agent.
func NewLogCommand(baseURL BaseURLFunc) *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Inspect a running agent's log"}
	logCmd.AddCommand(
		newLogListCommand(baseURL),
		newLogDumpCommand(baseURL),
		newLogCountCommand(baseURL),
		newLogDrainCommand(baseURL),
	)
	return logCmd
}

func newLogListCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records from the current file and memory as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			q := url.Values{}
			if filter != "" {
				q.Set("filter", filter)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			return call(cmd.OutOrStdout(), http.MethodGet, baseURL(), "/v1/log", q)
		},
	}
	cmd.Flags().String("filter", "", "CEL filter, e.g. name.startsWith(\"TCP_\")")
	cmd.Flags().Int("limit", 0, "Newest N records (0 for all)")
	return cmd
}

func newLogDumpCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the text dump of the current file and memory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			q := url.Values{}
			if filter != "" {
				q.Set("filter", filter)
			}
			return call(cmd.OutOrStdout(), http.MethodGet, baseURL(), "/v1/log/dump", q)
		},
	}
	cmd.Flags().String("filter", "", "CEL filter")
	return cmd
}

func newLogCountCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show pending and overwritten counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd.OutOrStdout(), http.MethodGet, baseURL(), "/v1/log/count", nil)
		},
	}
}

func newLogDrainCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Drain pending records to the current file now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd.OutOrStdout(), http.MethodPost, baseURL(), "/v1/log/drain", nil)
		},
	}
}
