package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// recordEventCmd represents the record-event command
var recordEventCmd = &cobra.Command{
	Use:     "record-event <entity-id> <session-id> <json-payload>",
	Short:   "record-event sends a custom event to the profile's Evidently project",
	RunE:    recordEventRun,
	Example: `aws-cognito-flags record-event -p demo user-1234 session-42 '{"pageLoadTime": 120}'`,
}

func init() {
	RootCmd.AddCommand(recordEventCmd)
}

func recordEventRun(cmd *cobra.Command, args []string) error {
	if len(args) < 3 {
		return ErrTooFewArguments
	}
	if len(args) > 3 {
		return ErrTooManyArguments
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(args[2]), &payload); err != nil {
		return fmt.Errorf("event payload must be a JSON object: %v", err)
	}

	e, _, err := newEvaluator()
	if err != nil {
		return err
	}
	return e.RecordEvent(cmd.Context(), args[0], args[1], payload)
}
