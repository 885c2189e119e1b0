package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the agent client.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "ringlog",
		Short: "ringlog client commands",
	}
	root.AddCommand(NewLogCommand(baseURL))
	root.AddCommand(NewUploadCommand(baseURL))
	return root
}
