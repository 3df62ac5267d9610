package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/parapet-sh/parapet/internal/dispatch"
)

var toolCmd = &cobra.Command{
	Use:   "tool [request-json]",
	Short: "Run one structured tool invocation",
	Long: `Run one tool invocation from a JSON request and print the JSON
response. The request is read from the argument, or from stdin when no
argument is given. Invalid operations and arguments produce an error
response on stdout, not a process failure, so conversational callers
always get structured output.`,
	Example: `  parapet tool '{"operation":"check-services"}'
  parapet tool '{"operation":"get-findings","arguments":{"severity":"high","limit":10}}'
  echo '{"operation":"analyze-posture","arguments":{"sessionId":"s-1"}}' | parapet tool`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := requestBytes(args)
		if err != nil {
			return err
		}

		var req dispatch.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return printJSON(dispatch.Response{
				Status:  "error",
				Kind:    dispatch.ErrInvalidArgument,
				Message: fmt.Sprintf("malformed request: %v", err),
			})
		}

		eng, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		return printJSON(eng.dispatcher.Dispatch(cmd.Context(), req))
	},
}

func requestBytes(args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading request from stdin: %w", err)
	}
	return raw, nil
}

func init() {
	rootCmd.AddCommand(toolCmd)
}
