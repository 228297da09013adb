package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// featureCmd represents the feature command
var featureCmd = &cobra.Command{
	Use:   "feature [<application> <environment> <configuration>] <flag>",
	Short: "feature prints whether an AppConfig feature flag is enabled",
	RunE:  featureRun,
	Example: "aws-cognito-flags feature -p demo app1 prod flags dark-mode\n" +
		"aws-cognito-flags feature -p demo dark-mode",
}

func init() {
	RootCmd.AddCommand(featureCmd)
}

func featureRun(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return ErrTooFewArguments
	}
	if len(args) > 4 {
		return ErrTooManyArguments
	}

	flag := args[len(args)-1]
	app, env, cfg, err := configTarget(args[:len(args)-1])
	if err != nil {
		return err
	}

	p, err := newPoller()
	if err != nil {
		return err
	}

	enabled, err := p.GetFeature(cmd.Context(), app, env, cfg, flag)
	if err != nil {
		return err
	}
	fmt.Println(enabled)
	return nil
}
