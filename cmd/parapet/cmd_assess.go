package main

import (
	"github.com/spf13/cobra"

	"github.com/parapet-sh/parapet/internal/dispatch"
)

var (
	assessSession string
	assessRefresh bool

	assessCmd = &cobra.Command{
		Use:   "assess",
		Short: "Run a full posture assessment",
		Long: `Query every enabled source, score the posture per pillar and
overall, and print the assessment with ranked recommendations.

With --session, a recent assessment for the same session and scope is
reused instead of refetching; --refresh forces a fresh one.`,
		Example: `  parapet assess
  parapet assess --session support-4711
  parapet assess --session support-4711 --refresh
  parapet assess --region eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd.Context(), dispatch.Request{
				Operation: dispatch.OpAnalyzePosture,
				Arguments: dispatch.Arguments{SessionID: assessSession, Refresh: assessRefresh},
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(assessCmd)

	assessCmd.Flags().StringVar(&assessSession, "session", "", "Session ID for assessment caching")
	assessCmd.Flags().BoolVar(&assessRefresh, "refresh", false, "Bypass the cached assessment")
}
