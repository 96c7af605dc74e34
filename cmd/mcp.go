package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/codequiz/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the generate_quiz tool over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		return mcpserver.New(a.orch, a.cfg.Settings(), a.logger).ServeStdio(version)
	},
}
