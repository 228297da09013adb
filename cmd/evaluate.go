package cmd

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/segmentio/aws-cognito-flags/lib"
	"github.com/segmentio/aws-cognito-flags/lib/evidently"
	"github.com/spf13/cobra"
)

type evaluation struct {
	EntityID  string      `json:"entityId"`
	Feature   string      `json:"feature"`
	Variation string      `json:"variation"`
	Value     interface{} `json:"value"`
	Reason    string      `json:"reason"`
	Details   string      `json:"details,omitempty"`
}

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:     "evaluate <entity-id> [feature]",
	Short:   "evaluate asks Evidently which variation of a feature an entity gets",
	RunE:    evaluateRun,
	Example: "aws-cognito-flags evaluate -p demo user-1234 EditableGuestbook",
}

func init() {
	RootCmd.AddCommand(evaluateCmd)
}

func newEvaluator() (*evidently.Evaluator, lib.Opts, error) {
	opts, err := baseOpts()
	if err != nil {
		return nil, opts, err
	}
	exchanger, err := newExchanger(opts)
	if err != nil {
		return nil, opts, err
	}
	e, err := evidently.New(exchanger, evidently.Opts{
		Region:  opts.Region,
		Project: opts.Project,
		Feature: opts.Feature,
		Log:     opts.Log,
	})
	return e, opts, err
}

func evaluateRun(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return ErrTooFewArguments
	}
	if len(args) > 2 {
		return ErrTooManyArguments
	}

	e, opts, err := newEvaluator()
	if err != nil {
		return err
	}

	feature := opts.Feature
	if len(args) == 2 {
		feature = args[1]
	}

	res, err := e.EvaluateFeature(cmd.Context(), args[0], feature)
	if err != nil {
		return err
	}

	return printJSON(evaluation{
		EntityID:  args[0],
		Feature:   feature,
		Variation: aws.StringValue(res.Variation),
		Value:     evidently.Value(res.Value),
		Reason:    aws.StringValue(res.Reason),
		Details:   aws.StringValue(res.Details),
	})
}
