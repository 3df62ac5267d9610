package main

import (
	"github.com/spf13/cobra"

	"github.com/parapet-sh/parapet/internal/dispatch"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Check which security sources are enabled and reachable",
	Example: `  parapet services
  parapet services --region eu-west-1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd.Context(), dispatch.Request{Operation: dispatch.OpCheckServices})
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}
