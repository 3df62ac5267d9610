package main

import (
	"github.com/spf13/cobra"

	"github.com/parapet-sh/parapet/internal/dispatch"
)

var (
	complianceResourceType string

	complianceCmd = &cobra.Command{
		Use:   "compliance",
		Short: "Report resource compliance against configured rules",
		Example: `  parapet compliance
  parapet compliance --resource-type AWS::S3::Bucket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd.Context(), dispatch.Request{
				Operation: dispatch.OpCheckCompliance,
				Arguments: dispatch.Arguments{ResourceType: complianceResourceType},
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(complianceCmd)

	complianceCmd.Flags().StringVar(&complianceResourceType, "resource-type", "", "Only report one resource type")
}
