package main

import (
	"github.com/spf13/cobra"

	"github.com/parapet-sh/parapet/internal/dispatch"
)

var (
	findingsMinSeverity  string
	findingsLimit        int
	findingsSource       string
	findingsResourceType string

	findingsCmd = &cobra.Command{
		Use:   "findings",
		Short: "Fetch current findings across all enabled sources",
		Long: `Fetch, normalize and merge findings from every enabled source.
Findings are sorted worst first; --min-severity is a floor, so HIGH
returns HIGH and CRITICAL. --source queries a single security source
and --resource-type keeps only findings on that AWS service.`,
		Example: `  parapet findings
  parapet findings --min-severity high
  parapet findings --source guardduty
  parapet findings --resource-type s3 --limit 25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd.Context(), dispatch.Request{
				Operation: dispatch.OpGetFindings,
				Arguments: dispatch.Arguments{
					Severity:     findingsMinSeverity,
					Limit:        findingsLimit,
					Service:      findingsSource,
					ResourceType: findingsResourceType,
				},
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(findingsCmd)

	findingsCmd.Flags().StringVar(&findingsMinSeverity, "min-severity", "", "Severity floor (low, medium, high, critical)")
	findingsCmd.Flags().IntVar(&findingsLimit, "limit", 0, "Maximum findings to return (0 = unlimited)")
	findingsCmd.Flags().StringVar(&findingsSource, "source", "", "Query a single source (securityhub, guardduty, inspector, access-analyzer)")
	findingsCmd.Flags().StringVar(&findingsResourceType, "resource-type", "", "Keep only findings on this AWS service (e.g. s3)")
}
