package main

import (
	"github.com/spf13/cobra"

	"github.com/parapet-sh/parapet/internal/dispatch"
)

var (
	exploreService string

	exploreCmd = &cobra.Command{
		Use:   "explore",
		Short: "Inventory account resources for posture review",
		Example: `  parapet explore
  parapet explore --service s3
  parapet explore --service ec2 --region eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd.Context(), dispatch.Request{
				Operation: dispatch.OpExploreResources,
				Arguments: dispatch.Arguments{Service: exploreService},
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(exploreCmd)

	exploreCmd.Flags().StringVar(&exploreService, "service", "", "Only inventory one service (ec2, iam, lambda, rds, s3)")
}
