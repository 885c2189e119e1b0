package client

import (
	"net/http"

	"github.com/spf13/cobra"
)

// NewUploadCommand constructs the `upload` command group.
func NewUploadCommand(baseURL BaseURLFunc) *cobra.Command {
	uploadCmd := &cobra.Command{Use: "upload", Short: "Control a running agent's uploads"}
	for _, c := range []struct {
		use, short, method, path string
	}{
		{"start", "Start an upload run", http.MethodPost, "/v1/upload/start"},
		{"stop", "Stop the active upload run", http.MethodPost, "/v1/upload/stop"},
		{"status", "Show upload state and the last run", http.MethodGet, "/v1/upload/status"},
	} {
		c := c
		uploadCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return call(cmd.OutOrStdout(), c.method, baseURL(), c.path, nil)
			},
		})
	}
	return uploadCmd
}
